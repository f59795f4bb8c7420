package presence

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSetter struct {
	calls []string
	err   error
}

func (s *recordingSetter) SetActivity(name string) error {
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, name)
	return nil
}

func TestRotator_NeverRepeatsWithTwoOrMoreCandidates(t *testing.T) {
	reg := newTestRegistry()
	reg.Put("1", "a")
	reg.Put("2", "b")
	reg.Put("3", "c")

	setter := &recordingSetter{}
	r := NewRotator(reg, setter, time.Minute, zerolog.Nop())

	for i := 0; i < 200; i++ {
		r.rotate()
	}

	require.Len(t, setter.calls, 200)
	for i := 1; i < len(setter.calls); i++ {
		assert.NotEqual(t, setter.calls[i-1], setter.calls[i], "repeat at position %d", i)
	}
}

func TestRotator_SoleCandidateMayRepeat(t *testing.T) {
	reg := newTestRegistry()
	reg.Put("1", "the only one")

	setter := &recordingSetter{}
	r := NewRotator(reg, setter, time.Minute, zerolog.Nop())

	r.rotate()
	r.rotate()

	assert.Equal(t, []string{"the only one", "the only one"}, setter.calls)
}

func TestRotator_EmptyRegistryHasNoSideEffects(t *testing.T) {
	reg := newTestRegistry()
	setter := &recordingSetter{}
	r := NewRotator(reg, setter, time.Minute, zerolog.Nop())

	r.rotate()

	assert.Empty(t, setter.calls)
	assert.Nil(t, r.last)
}

func TestRotator_SetterFailureKeepsRotationState(t *testing.T) {
	reg := newTestRegistry()
	reg.Put("1", "a")

	setter := &recordingSetter{err: assert.AnError}
	r := NewRotator(reg, setter, time.Minute, zerolog.Nop())

	r.rotate()

	assert.Nil(t, r.last, "failed pushes must not become the previous choice")
}

func TestRotator_PickExcludesLastUnlessSole(t *testing.T) {
	reg := newTestRegistry()
	r := NewRotator(reg, &recordingSetter{}, time.Minute, zerolog.Nop())

	last := Candidate{MessageID: "1", Content: "a"}
	r.last = &last

	got, ok := r.pick([]Candidate{last, {MessageID: "2", Content: "b"}})
	require.True(t, ok)
	assert.Equal(t, "b", got.Content)

	got, ok = r.pick([]Candidate{last})
	require.True(t, ok)
	assert.Equal(t, last, got)
}

func TestRotator_RunStopsOnCancel(t *testing.T) {
	reg := newTestRegistry()
	reg.Put("1", "a")

	setter := &recordingSetter{}
	r := NewRotator(reg, setter, time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("rotator did not stop after cancel")
	}

	assert.NotEmpty(t, setter.calls)
}
