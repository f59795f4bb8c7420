package discord

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"schilliger-bot/internal/config"
)

func testBot() *Bot {
	cfg := &config.Config{
		Token:           "token",
		RotateInterval:  time.Minute,
		DayPollInterval: time.Minute,
	}
	return NewBot(cfg, zerolog.Nop())
}

func TestReportPlaybackFailurePostsToLastPlayChannel(t *testing.T) {
	b := testBot()

	var gotChannel, gotContent string
	b.say = func(channelID, content string) error {
		gotChannel, gotContent = channelID, content
		return nil
	}

	b.rememberPlayChannel("g1", "c1")
	b.reportPlaybackFailure("g1", errors.New("stream died"))

	assert.Equal(t, "c1", gotChannel)
	assert.Contains(t, gotContent, "stream died")
}

func TestReportPlaybackFailureStaysSilentWithoutKnownChannel(t *testing.T) {
	b := testBot()

	called := false
	b.say = func(string, string) error {
		called = true
		return nil
	}

	b.reportPlaybackFailure("g1", errors.New("stream died"))

	assert.False(t, called, "no /play seen for the guild, nothing to post")
}
