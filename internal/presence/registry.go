// Package presence keeps the pool of suggested status lines and rotates the
// bot's displayed activity through it. Candidates come from messages in a
// designated channel and live exactly as long as the message does.
package presence

import (
	"sync"

	"github.com/rs/zerolog"
)

// Candidate is one suggested status line, keyed by the message that
// submitted it.
type Candidate struct {
	MessageID string
	Content   string
}

// Registry is a concurrency-safe map of message id to candidate. Event
// handlers write, the rotator reads snapshots.
type Registry struct {
	mu         sync.RWMutex
	candidates map[string]Candidate
	log        zerolog.Logger
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		candidates: make(map[string]Candidate),
		log:        log,
	}
}

// Put registers or replaces the candidate for a message.
func (r *Registry) Put(messageID, content string) {
	r.mu.Lock()
	r.candidates[messageID] = Candidate{MessageID: messageID, Content: content}
	r.mu.Unlock()

	r.log.Info().Str("message_id", messageID).Str("content", content).Msg("registered presence")
}

// Remove drops the candidate for a message. Unknown ids are a no-op.
func (r *Registry) Remove(messageID string) {
	r.mu.Lock()
	c, ok := r.candidates[messageID]
	if ok {
		delete(r.candidates, messageID)
	}
	r.mu.Unlock()

	if ok {
		r.log.Info().Str("message_id", messageID).Str("content", c.Content).Msg("deleted presence")
	}
}

// Snapshot returns a point-in-time copy of all candidates. Order is not
// specified.
func (r *Registry) Snapshot() []Candidate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Candidate, 0, len(r.candidates))
	for _, c := range r.candidates {
		out = append(out, c)
	}
	return out
}

// Len reports the current number of candidates.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.candidates)
}
