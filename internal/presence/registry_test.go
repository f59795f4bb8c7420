package presence

import (
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	return NewRegistry(zerolog.Nop())
}

func TestRegistry_PutAndSnapshot(t *testing.T) {
	r := newTestRegistry()
	r.Put("1", "streaming cat videos")
	r.Put("2", "counting sheep")

	snap := r.Snapshot()
	require.Len(t, snap, 2)
	assert.ElementsMatch(t, []Candidate{
		{MessageID: "1", Content: "streaming cat videos"},
		{MessageID: "2", Content: "counting sheep"},
	}, snap)
}

func TestRegistry_PutReplacesSameID(t *testing.T) {
	r := newTestRegistry()
	r.Put("1", "old")
	r.Put("1", "new")

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "new", snap[0].Content)
}

func TestRegistry_RemoveUnknownIsNoop(t *testing.T) {
	r := newTestRegistry()
	r.Put("1", "something")

	r.Remove("does-not-exist")

	assert.Equal(t, 1, r.Len())
}

func TestRegistry_InsertThenRemoveRestoresSize(t *testing.T) {
	r := newTestRegistry()
	r.Put("1", "keep me")
	before := r.Len()

	r.Put("2", "ephemeral")
	r.Remove("2")

	assert.Equal(t, before, r.Len())
}

func TestRegistry_SnapshotIsACopy(t *testing.T) {
	r := newTestRegistry()
	r.Put("1", "stable")

	snap := r.Snapshot()
	r.Remove("1")

	require.Len(t, snap, 1)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_ConcurrentWritersAndReader(t *testing.T) {
	r := newTestRegistry()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id := fmt.Sprintf("%d-%d", w, i)
				r.Put(id, "content")
				if i%2 == 0 {
					r.Remove(id)
				}
			}
		}(w)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_ = r.Snapshot()
		}
	}()

	wg.Wait()
	<-done

	assert.Equal(t, 4*50, r.Len())
}
