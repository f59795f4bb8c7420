package presence

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// ActivitySetter pushes a status line to the platform.
type ActivitySetter interface {
	SetActivity(name string) error
}

// Rotator periodically applies a random registry candidate as the bot's
// activity, avoiding the previously applied one when any alternative exists.
type Rotator struct {
	reg      *Registry
	setter   ActivitySetter
	interval time.Duration
	rng      *rand.Rand
	log      zerolog.Logger

	last *Candidate
}

func NewRotator(reg *Registry, setter ActivitySetter, interval time.Duration, log zerolog.Logger) *Rotator {
	return &Rotator{
		reg:      reg,
		setter:   setter,
		interval: interval,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		log:      log,
	}
}

// Run rotates until the context is cancelled. Failures to apply an activity
// are logged and the loop continues.
func (r *Rotator) Run(ctx context.Context) {
	timer := time.NewTicker(r.interval)
	defer timer.Stop()

	for {
		r.rotate()

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

func (r *Rotator) rotate() {
	c, ok := r.pick(r.reg.Snapshot())
	if !ok {
		return
	}

	if err := r.setter.SetActivity(c.Content); err != nil {
		r.log.Warn().Err(err).Str("content", c.Content).Msg("failed to set presence")
		return
	}

	r.last = &c
	r.log.Info().Str("content", c.Content).Msg("set presence")
}

// pick draws uniformly among candidates, excluding the previous pick unless
// it is the only candidate left.
func (r *Rotator) pick(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}

	pool := candidates
	if r.last != nil && len(candidates) > 1 {
		pool = make([]Candidate, 0, len(candidates))
		for _, c := range candidates {
			if c != *r.last {
				pool = append(pool, c)
			}
		}
		if len(pool) == 0 {
			pool = candidates
		}
	}

	return pool[r.rng.Intn(len(pool))], true
}
