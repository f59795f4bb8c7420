// Package session owns at most one voice playback session per guild. The
// manager joins the caller's voice channel, resolves queries through the
// media resolver and starts or stops playback over an injected transport.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"schilliger-bot/internal/music/resolver"
)

var (
	// ErrNotInVoice means the invoking user occupies no voice channel.
	ErrNotInVoice = errors.New("user is not in a voice channel")
	// ErrNoSession means the guild has no active voice session.
	ErrNoSession = errors.New("no active voice session")
)

// Resolver turns a query into a playable media source.
type Resolver interface {
	Resolve(ctx context.Context, query string) (*resolver.MediaSource, error)
}

// VoiceStateFinder locates the voice channel a user currently occupies.
// An empty channel id with a nil error means the user is in no voice
// channel; errors are reserved for lookup failures.
type VoiceStateFinder interface {
	FindUserVoiceChannel(guildID, userID string) (channelID string, err error)
}

// VoiceTransport joins voice channels. onTrackError receives asynchronous
// mid-playback failures and is registered once per join.
type VoiceTransport interface {
	Join(guildID, channelID string, onTrackError func(error)) (VoiceHandle, error)
}

// VoiceHandle is a live voice connection. Play replaces whatever is
// currently playing.
type VoiceHandle interface {
	Play(src *resolver.MediaSource) error
	Stop()
	Disconnect() error
}

// NotifyFunc receives asynchronous playback failures per guild.
type NotifyFunc func(guildID string, err error)

// Manager tracks one session slot per guild. The slot mutex serializes
// join/play/stop for a guild; guilds never contend with each other beyond
// the cheap slot lookup.
type Manager struct {
	mu    sync.Mutex
	slots map[string]*Session

	finder    VoiceStateFinder
	transport VoiceTransport
	resolver  Resolver
	notify    NotifyFunc
	log       zerolog.Logger
}

// Session is the per-guild playback state. Owned by the Manager; callers
// never hold it.
type Session struct {
	mu        sync.Mutex
	guildID   string
	channelID string
	conn      VoiceHandle
	track     *resolver.MediaSource
}

func NewManager(finder VoiceStateFinder, transport VoiceTransport, res Resolver, log zerolog.Logger) *Manager {
	return &Manager{
		slots:     make(map[string]*Session),
		finder:    finder,
		transport: transport,
		resolver:  res,
		log:       log,
	}
}

// OnPlaybackFailure installs a notifier for asynchronous track errors. Must
// be called before the first join.
func (m *Manager) OnPlaybackFailure(fn NotifyFunc) {
	m.notify = fn
}

func (m *Manager) slot(guildID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[guildID]
	if !ok {
		s = &Session{guildID: guildID}
		m.slots[guildID] = s
	}
	return s
}

// JoinCaller joins the voice channel the invoking user occupies and returns
// its id. A session already connected to that channel is reused; a session
// in another channel is replaced, not merged.
func (m *Manager) JoinCaller(guildID, userID string) (string, error) {
	channelID, err := m.finder.FindUserVoiceChannel(guildID, userID)
	if err != nil {
		return "", fmt.Errorf("find caller voice state: %w", err)
	}
	if channelID == "" {
		return "", ErrNotInVoice
	}

	s := m.slot(guildID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil && s.channelID == channelID {
		return channelID, nil
	}

	conn, err := m.transport.Join(guildID, channelID, m.trackErrorHandler(guildID))
	if err != nil {
		return "", fmt.Errorf("join voice channel %s: %w", channelID, err)
	}

	if s.conn != nil {
		s.conn.Stop()
		if err := s.conn.Disconnect(); err != nil {
			m.log.Warn().Err(err).Str("guild_id", guildID).Msg("failed to disconnect replaced session")
		}
	}

	s.conn = conn
	s.channelID = channelID
	s.track = nil
	m.log.Info().Str("guild_id", guildID).Str("channel_id", channelID).Msg("joined voice channel")
	return channelID, nil
}

// Play resolves the query and replaces the current track with the result.
// On resolution failure the current track is left untouched. Requires a
// prior successful JoinCaller for the guild.
func (m *Manager) Play(ctx context.Context, guildID, query string) (*resolver.MediaSource, error) {
	s := m.slot(guildID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil, ErrNoSession
	}

	src, err := m.resolver.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}

	if err := s.conn.Play(src); err != nil {
		return nil, fmt.Errorf("start playback: %w", err)
	}

	s.track = src
	m.log.Info().Str("guild_id", guildID).Str("title", src.Title).Str("url", src.URL).Msg("now playing")
	return src, nil
}

// Stop halts playback for the guild. ErrNoSession is returned when there is
// nothing to stop.
func (m *Manager) Stop(guildID string) error {
	s := m.slot(guildID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return ErrNoSession
	}

	s.conn.Stop()
	s.track = nil
	m.log.Info().Str("guild_id", guildID).Msg("playback stopped")
	return nil
}

// Current returns the track playing in the guild, if any.
func (m *Manager) Current(guildID string) (*resolver.MediaSource, bool) {
	s := m.slot(guildID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || s.track == nil {
		return nil, false
	}
	return s.track, true
}

// Shutdown disconnects every live session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	slots := make([]*Session, 0, len(m.slots))
	for _, s := range m.slots {
		slots = append(slots, s)
	}
	m.mu.Unlock()

	for _, s := range slots {
		s.mu.Lock()
		if s.conn != nil {
			s.conn.Stop()
			if err := s.conn.Disconnect(); err != nil {
				m.log.Warn().Err(err).Str("guild_id", s.guildID).Msg("failed to disconnect session")
			}
			s.conn = nil
			s.track = nil
		}
		s.mu.Unlock()
	}
}

// trackErrorHandler surfaces asynchronous playback failures. No retry, no
// skip: the failure is logged and reported, other guilds are unaffected.
func (m *Manager) trackErrorHandler(guildID string) func(error) {
	return func(err error) {
		m.log.Error().Err(err).Str("guild_id", guildID).Msg("track playback failure")
		if m.notify != nil {
			m.notify(guildID, err)
		}
	}
}
