// Package dayname renames a channel after the current day of the week.
package dayname

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

var weekdays = [7]string{
	"Montag",
	"Dienstag",
	"Mittwoch",
	"Donnerstag",
	"Freitag",
	"Samstag",
	"Sonntag",
}

// Weekday returns the German weekday name for t, Monday first.
func Weekday(t time.Time) string {
	return weekdays[(int(t.Weekday())+6)%7]
}

// Title builds the channel title for a weekday name.
func Title(day string) string {
	return fmt.Sprintf("Endlich %s!", day)
}

// ChannelRenamer edits a channel's displayed name.
type ChannelRenamer interface {
	RenameChannel(ctx context.Context, channelID, name string) error
}

// Scheduler polls the wall clock and renames the configured channel when the
// weekday changes. The poll is cheap and idempotent: no call is made while
// the weekday stays the same.
type Scheduler struct {
	renamer   ChannelRenamer
	channelID string
	interval  time.Duration
	now       func() time.Time
	log       zerolog.Logger

	current string
}

func NewScheduler(renamer ChannelRenamer, channelID string, interval time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		renamer:   renamer,
		channelID: channelID,
		interval:  interval,
		now:       time.Now,
		log:       log,
	}
}

// Run polls until the context is cancelled. A failed rename terminates the
// loop and is returned to the caller; the loop never fails silently.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.tick(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) error {
	day := Weekday(s.now())
	if day == s.current {
		return nil
	}

	if err := s.renamer.RenameChannel(ctx, s.channelID, Title(day)); err != nil {
		return fmt.Errorf("rename channel %s: %w", s.channelID, err)
	}

	s.current = day
	s.log.Info().Str("weekday", day).Msg("renamed channel")
	return nil
}
