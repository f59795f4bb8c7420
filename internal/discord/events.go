package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"schilliger-bot/pkg/retrylimit"
)

const historyPageSize = 100

// historySource is the paged message-history fetch behind startup
// reconciliation.
type historySource interface {
	ChannelMessages(channelID string, limit int, beforeID string) ([]*discordgo.Message, error)
}

// presenceSink receives replayed candidates.
type presenceSink interface {
	Put(messageID, content string)
}

// sessionHistory adapts the gateway session to historySource.
type sessionHistory struct {
	dg *discordgo.Session
}

func (s sessionHistory) ChannelMessages(channelID string, limit int, beforeID string) ([]*discordgo.Message, error) {
	return s.dg.ChannelMessages(channelID, limit, beforeID, "", "")
}

// onMessageCreate feeds qualifying messages in the designated channel into
// the presence registry. The bot's own messages never qualify.
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.ChannelID != b.cfg.PresenceChannelID {
		return
	}
	if m.Author != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}

	b.registry.Put(m.ID, m.Content)
}

// onMessageDelete removes the matching candidate. Unknown ids are ignored by
// the registry.
func (b *Bot) onMessageDelete(s *discordgo.Session, m *discordgo.MessageDelete) {
	if m.ChannelID != b.cfg.PresenceChannelID {
		return
	}

	b.registry.Remove(m.ID)
}

// reconcilePresence replays the full history of the designated channel so
// the registry matches the messages that currently exist.
func (b *Bot) reconcilePresence(ctx context.Context) error {
	selfID := ""
	if b.dg.State != nil && b.dg.State.User != nil {
		selfID = b.dg.State.User.ID
	}

	count, err := replayChannelHistory(ctx, sessionHistory{b.dg}, b.lim, b.registry, b.cfg.PresenceChannelID, selfID)
	if err != nil {
		return err
	}

	b.log.Info().Int("count", count).Msg("reconciled presence registry from channel history")
	return nil
}

// replayChannelHistory pages through the whole channel history and inserts
// every foreign message into the sink oldest first. Pages arrive newest
// first, and so do the messages within each page.
func replayChannelHistory(ctx context.Context, src historySource, lim *retrylimit.AdaptiveLimiter, sink presenceSink, channelID, selfID string) (int, error) {
	var pages [][]*discordgo.Message
	before := ""

	for {
		if err := lim.Wait(ctx); err != nil {
			return 0, err
		}

		msgs, err := src.ChannelMessages(channelID, historyPageSize, before)
		if err != nil {
			lim.Failure()
			return 0, err
		}
		lim.Success()

		if len(msgs) == 0 {
			break
		}

		pages = append(pages, msgs)
		before = msgs[len(msgs)-1].ID

		if len(msgs) < historyPageSize {
			break
		}
	}

	count := 0
	for i := len(pages) - 1; i >= 0; i-- {
		page := pages[i]
		for j := len(page) - 1; j >= 0; j-- {
			m := page[j]
			if m.Author != nil && selfID != "" && m.Author.ID == selfID {
				continue
			}
			sink.Put(m.ID, m.Content)
			count++
		}
	}

	return count, nil
}
