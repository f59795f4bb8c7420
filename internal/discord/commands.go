package discord

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"schilliger-bot/internal/music/session"
	"schilliger-bot/pkg/retrylimit"
)

var commandDefs = []*discordgo.ApplicationCommand{
	{
		Name:        "play",
		Description: "Play a track by URL or search query",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "query",
				Description: "The url or video name to play",
				Required:    true,
			},
		},
	},
	{
		Name:        "stop",
		Description: "Stop playback",
	},
}

// registerCommands creates the slash commands for a guild, rate limited and
// retried against transient REST failures.
func (b *Bot) registerCommands(guildID string) error {
	appID := b.dg.State.User.ID
	if appID == "" {
		user, err := b.dg.User("@me")
		if err != nil {
			return err
		}
		appID = user.ID
	}

	for _, def := range commandDefs {
		err := retrylimit.WithRetryMax(b.runCtx, func() error {
			_, err := b.dg.ApplicationCommandCreate(appID, guildID, def)
			return err
		}, b.lim, 3)
		if err != nil {
			return fmt.Errorf("create command %s: %w", def.Name, err)
		}
		b.log.Debug().Str("guild_id", guildID).Str("command", def.Name).Msg("command registered")
	}
	return nil
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if i.GuildID == "" || i.Member == nil {
		b.respond(i, "This command only works inside a server.")
		return
	}

	switch i.ApplicationCommandData().Name {
	case "play":
		b.handlePlay(i)
	case "stop":
		b.handleStop(i)
	default:
		b.log.Warn().Str("command", i.ApplicationCommandData().Name).Msg("unknown command")
	}
}

// handlePlay joins the caller's voice channel and starts the resolved track.
// Every failure is terminal to this invocation and reported as a reply.
func (b *Bot) handlePlay(i *discordgo.InteractionCreate) {
	var query string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "query" {
			query = opt.StringValue()
		}
	}

	// Resolution can outlive the 3s interaction window.
	if err := b.dg.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		b.log.Error().Err(err).Msg("failed to send deferred response")
		return
	}

	if _, err := b.sessions.JoinCaller(i.GuildID, i.Member.User.ID); err != nil {
		if errors.Is(err, session.ErrNotInVoice) {
			b.followup(i, "Join a voice channel first, then try again.")
		} else {
			b.followup(i, fmt.Sprintf("Couldn't join your voice channel: %v", err))
		}
		return
	}

	src, err := b.sessions.Play(b.runCtx, i.GuildID, query)
	if err != nil {
		b.followup(i, fmt.Sprintf("Error playing video (detailed: %v)", err))
		return
	}
	b.rememberPlayChannel(i.GuildID, i.ChannelID)

	if src.Title != "" {
		b.followup(i, fmt.Sprintf("Now playing video `%s`", src.Title))
	} else {
		b.followup(i, "Playing unknown song title")
	}
}

func (b *Bot) handleStop(i *discordgo.InteractionCreate) {
	err := b.sessions.Stop(i.GuildID)
	switch {
	case errors.Is(err, session.ErrNoSession):
		b.respond(i, "Couldn't find bot in voice channel, unable to stop the video!")
	case err != nil:
		b.respond(i, fmt.Sprintf("Failed to stop playback: %v", err))
	default:
		b.respond(i, "Successfully stopped the video")
	}
}

func (b *Bot) respond(i *discordgo.InteractionCreate, content string) {
	err := b.dg.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	})
	if err != nil {
		b.log.Error().Err(err).Msg("failed to respond to interaction")
	}
}

func (b *Bot) followup(i *discordgo.InteractionCreate, content string) {
	_, err := b.dg.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{Content: content})
	if err != nil {
		b.log.Error().Err(err).Msg("failed to send followup")
	}
}
