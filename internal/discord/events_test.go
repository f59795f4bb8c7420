package discord

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schilliger-bot/pkg/retrylimit"
)

// fakeHistory serves pages newest first, like the Discord API does.
type fakeHistory struct {
	messages []*discordgo.Message // oldest first
	calls    []string             // beforeID per fetch
}

func (f *fakeHistory) ChannelMessages(channelID string, limit int, beforeID string) ([]*discordgo.Message, error) {
	f.calls = append(f.calls, beforeID)

	end := len(f.messages)
	if beforeID != "" {
		end = 0
		for i, m := range f.messages {
			if m.ID == beforeID {
				end = i
				break
			}
		}
	}

	start := end - limit
	if start < 0 {
		start = 0
	}

	page := make([]*discordgo.Message, 0, end-start)
	for i := end - 1; i >= start; i-- {
		page = append(page, f.messages[i])
	}
	return page, nil
}

type failingHistory struct {
	err error
}

func (f *failingHistory) ChannelMessages(string, int, string) ([]*discordgo.Message, error) {
	return nil, f.err
}

type recordingSink struct {
	ids []string
}

func (s *recordingSink) Put(messageID, content string) {
	s.ids = append(s.ids, messageID)
}

func historyMessages(n int, authorID string) []*discordgo.Message {
	msgs := make([]*discordgo.Message, 0, n)
	for i := 1; i <= n; i++ {
		msgs = append(msgs, &discordgo.Message{
			ID:      fmt.Sprintf("%03d", i),
			Content: fmt.Sprintf("status %d", i),
			Author:  &discordgo.User{ID: authorID},
		})
	}
	return msgs
}

func historyLimiter() *retrylimit.AdaptiveLimiter {
	return retrylimit.NewAdaptiveLimiter(1000, 1, 1000, 1, 0.5)
}

func TestReplayChannelHistoryInsertsOldestFirstAcrossPages(t *testing.T) {
	hist := &fakeHistory{messages: historyMessages(250, "someone")}
	sink := &recordingSink{}

	count, err := replayChannelHistory(context.Background(), hist, historyLimiter(), sink, "chan", "bot")
	require.NoError(t, err)

	assert.Equal(t, 250, count)
	require.Len(t, sink.ids, 250)
	for i, id := range sink.ids {
		assert.Equalf(t, fmt.Sprintf("%03d", i+1), id, "insertion %d out of order", i)
	}
}

func TestReplayChannelHistoryTerminatesOnExactPageBoundary(t *testing.T) {
	hist := &fakeHistory{messages: historyMessages(2*historyPageSize, "someone")}
	sink := &recordingSink{}

	count, err := replayChannelHistory(context.Background(), hist, historyLimiter(), sink, "chan", "bot")
	require.NoError(t, err)

	assert.Equal(t, 2*historyPageSize, count)
	// Two full pages, then the empty page that ends the loop.
	assert.Equal(t, []string{"", "101", "001"}, hist.calls)
}

func TestReplayChannelHistorySkipsOwnMessages(t *testing.T) {
	msgs := historyMessages(5, "someone")
	msgs[1].Author = &discordgo.User{ID: "bot"}
	msgs[3].Author = nil

	hist := &fakeHistory{messages: msgs}
	sink := &recordingSink{}

	count, err := replayChannelHistory(context.Background(), hist, historyLimiter(), sink, "chan", "bot")
	require.NoError(t, err)

	assert.Equal(t, 4, count)
	assert.NotContains(t, sink.ids, "002")
	assert.Contains(t, sink.ids, "004")
}

func TestReplayChannelHistoryPropagatesFetchError(t *testing.T) {
	cause := errors.New("history unavailable")
	sink := &recordingSink{}

	_, err := replayChannelHistory(context.Background(), &failingHistory{err: cause}, historyLimiter(), sink, "chan", "bot")
	require.ErrorIs(t, err, cause)
	assert.Empty(t, sink.ids)
}
