// Package discord wires the coordinators to a discordgo session: inbound
// gateway events fan out to the presence registry and the command handlers,
// the background loops push activity updates and channel renames back out.
package discord

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"schilliger-bot/internal/config"
	"schilliger-bot/internal/dayname"
	"schilliger-bot/internal/music/resolver"
	"schilliger-bot/internal/music/session"
	"schilliger-bot/internal/presence"
	"schilliger-bot/pkg/retrylimit"
)

// Bot is the Discord bot.
type Bot struct {
	dg  *discordgo.Session
	cfg *config.Config
	log zerolog.Logger

	registry  *presence.Registry
	rotator   *presence.Rotator
	scheduler *dayname.Scheduler
	sessions  *session.Manager
	lim       *retrylimit.AdaptiveLimiter

	runCtx    context.Context
	startOnce sync.Once
	fatalCh   chan error

	// say posts a plain message; swapped out in tests.
	say func(channelID, content string) error

	playMu       sync.Mutex
	playChannels map[string]string
}

// NewBot builds the bot and its coordinators. Nothing talks to Discord until
// Run.
func NewBot(cfg *config.Config, log zerolog.Logger) *Bot {
	b := &Bot{
		cfg:          cfg,
		log:          log,
		registry:     presence.NewRegistry(log),
		lim:          retrylimit.NewAdaptiveLimiter(5, 1, 20, 1, 0.5),
		fatalCh:      make(chan error, 1),
		playChannels: make(map[string]string),
	}

	b.rotator = presence.NewRotator(b.registry, b, cfg.RotateInterval, log)
	b.scheduler = dayname.NewScheduler(b, cfg.DayChannelID, cfg.DayPollInterval, log)
	b.sessions = session.NewManager(b, b, resolver.New(log), log)
	b.sessions.OnPlaybackFailure(b.reportPlaybackFailure)

	return b
}

// rememberPlayChannel records where /play was last invoked for a guild so
// asynchronous failures have somewhere to go.
func (b *Bot) rememberPlayChannel(guildID, channelID string) {
	b.playMu.Lock()
	b.playChannels[guildID] = channelID
	b.playMu.Unlock()
}

// reportPlaybackFailure posts mid-playback failures to the channel the track
// was requested from. Stays silent when no /play has been seen for the guild.
func (b *Bot) reportPlaybackFailure(guildID string, cause error) {
	b.playMu.Lock()
	channelID := b.playChannels[guildID]
	b.playMu.Unlock()

	if channelID == "" || b.say == nil {
		return
	}

	if err := b.say(channelID, fmt.Sprintf("Track playback failed: %v", cause)); err != nil {
		b.log.Warn().Err(err).Str("guild_id", guildID).Msg("failed to report playback failure")
	}
}

// Run opens the gateway session and blocks until the context is cancelled or
// a background loop dies fatally.
func (b *Bot) Run(ctx context.Context) error {
	dg, err := discordgo.New("Bot " + b.cfg.Token)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	b.dg = dg
	b.runCtx = ctx
	b.say = func(channelID, content string) error {
		_, err := dg.ChannelMessageSend(channelID, content)
		return err
	}
	dg.Identify.Intents = discordgo.IntentsAll

	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onGuildCreate)
	dg.AddHandler(b.onMessageCreate)
	dg.AddHandler(b.onMessageDelete)
	dg.AddHandler(b.onInteractionCreate)

	if err := dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer dg.Close()
	defer b.sessions.Shutdown()

	select {
	case <-ctx.Done():
		b.log.Info().Msg("shutdown signal received, cleaning up")
		return nil
	case err := <-b.fatalCh:
		return err
	}
}

// onReady reconciles the presence registry from channel history and starts
// the two long-running loops, once per process.
func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.log.Info().Str("user_id", r.User.ID).Str("username", r.User.Username).Msg("bot is ready")

	b.startOnce.Do(func() {
		if b.cfg.PresenceChannelID != "" {
			if err := b.reconcilePresence(b.runCtx); err != nil {
				b.log.Error().Err(err).Msg("presence history reconciliation failed")
			}
			go b.rotator.Run(b.runCtx)
		} else {
			b.log.Warn().Msg("no presence channel configured, rotator disabled")
		}

		if b.cfg.DayChannelID != "" {
			go func() {
				if err := b.scheduler.Run(b.runCtx); err != nil {
					b.log.Error().Err(err).Msg("day-name scheduler exited")
					select {
					case b.fatalCh <- fmt.Errorf("day-name scheduler: %w", err):
					default:
					}
				}
			}()
		} else {
			b.log.Warn().Msg("no day channel configured, scheduler disabled")
		}
	})
}

func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	b.log.Info().Str("guild_id", g.Guild.ID).Str("name", g.Guild.Name).Msg("bot added to guild")

	if b.cfg.RegisterCommands {
		if err := b.registerCommands(g.Guild.ID); err != nil {
			b.log.Error().Err(err).Str("guild_id", g.Guild.ID).Msg("failed to register commands for new guild")
		}
	}
}
