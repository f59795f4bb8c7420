package discord

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"schilliger-bot/internal/music/resolver"
	"schilliger-bot/internal/music/session"
	"schilliger-bot/internal/music/stream"
)

// FindUserVoiceChannel implements session.VoiceStateFinder by scanning the
// cached guild voice states. An empty channel id means the user is in no
// voice channel; errors are reserved for state lookup failures.
func (b *Bot) FindUserVoiceChannel(guildID, userID string) (string, error) {
	guild, err := b.dg.State.Guild(guildID)
	if err != nil {
		return "", fmt.Errorf("error retrieving guild: %w", err)
	}

	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID {
			return vs.ChannelID, nil
		}
	}
	return "", nil
}

// Join implements session.VoiceTransport.
func (b *Bot) Join(guildID, channelID string, onTrackError func(error)) (session.VoiceHandle, error) {
	vc, err := b.dg.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, err
	}

	return newVoiceHandle(vc, onTrackError, b.log), nil
}

// SetActivity implements presence.ActivitySetter.
func (b *Bot) SetActivity(name string) error {
	return b.dg.UpdateGameStatus(0, name)
}

// RenameChannel implements dayname.ChannelRenamer.
func (b *Bot) RenameChannel(ctx context.Context, channelID, name string) error {
	_, err := b.dg.ChannelEdit(channelID, &discordgo.ChannelEdit{Name: name})
	return err
}

type openFunc func(src *resolver.MediaSource) (io.ReadCloser, func(), error)
type playFunc func(pcm io.ReadCloser, stop <-chan struct{}) error

// voiceHandle streams one track at a time over a voice connection. Play
// replaces the running track; mid-playback failures go to onErr.
type voiceHandle struct {
	vc    *discordgo.VoiceConnection
	onErr func(error)
	log   zerolog.Logger
	open  openFunc
	play  playFunc

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
	kill func()
}

func newVoiceHandle(vc *discordgo.VoiceConnection, onErr func(error), log zerolog.Logger) *voiceHandle {
	return &voiceHandle{
		vc:    vc,
		onErr: onErr,
		log:   log,
		open:  stream.Open,
		play: func(pcm io.ReadCloser, stop <-chan struct{}) error {
			if err := vc.Speaking(true); err != nil {
				return fmt.Errorf("set speaking: %w", err)
			}
			defer vc.Speaking(false)

			return stream.PlayPCM(pcm, stop, vc)
		},
	}
}

func (h *voiceHandle) Play(src *resolver.MediaSource) error {
	h.Stop()

	pcm, cleanup, err := h.open(src)
	if err != nil {
		return err
	}

	var once sync.Once
	kill := func() {
		if cleanup != nil {
			once.Do(cleanup)
		}
	}

	stopCh := make(chan struct{})
	doneCh := make(chan struct{})

	h.mu.Lock()
	h.stop = stopCh
	h.done = doneCh
	h.kill = kill
	h.mu.Unlock()

	go func() {
		defer close(doneCh)
		defer kill()

		if err := h.play(pcm, stopCh); err != nil {
			select {
			case <-stopCh:
				// The subprocess was torn down by Stop; the resulting read
				// error is not a playback failure.
			default:
				h.onErr(err)
			}
		}
	}()

	return nil
}

// Stop halts the running track and waits for the streaming goroutine to
// drain. The subprocess is killed before the wait so a stream wedged on a
// stalled pipe cannot block the caller. Safe to call with nothing playing.
func (h *voiceHandle) Stop() {
	h.mu.Lock()
	stopCh, doneCh, kill := h.stop, h.done, h.kill
	h.stop, h.done, h.kill = nil, nil, nil
	h.mu.Unlock()

	if stopCh == nil {
		return
	}

	close(stopCh)
	kill()
	<-doneCh
}

func (h *voiceHandle) Disconnect() error {
	h.Stop()
	return h.vc.Disconnect()
}
