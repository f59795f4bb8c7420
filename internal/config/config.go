// Package config loads bot configuration from settings.json and the
// environment. The settings file carries the Discord token and the two
// channel ids; environment variables override it and tune runtime knobs.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func init() {
	// Same fallback as a missing .env: system environment only.
	_ = godotenv.Load()
}

// Settings mirrors settings.json. Channel ids are numeric snowflakes in the
// file and converted to strings for the Discord API.
type Settings struct {
	Token             string `json:"token"`
	DayChannelID      uint64 `json:"dayChannelId"`
	PresenceChannelID uint64 `json:"presenceChannelId"`
}

// DefaultSettings returns the placeholder settings used when settings.json
// is missing or corrupt. A missing file is not fatal; a bot without a token
// is, but that is decided by the caller.
func DefaultSettings() Settings {
	return Settings{Token: "Your Token"}
}

type envConfig struct {
	DiscordToken     string        `env:"DISCORD_TOKEN"`
	SettingsPath     string        `env:"SETTINGS_PATH" envDefault:"settings.json"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	RotateInterval   time.Duration `env:"PRESENCE_ROTATE_INTERVAL" envDefault:"30s"`
	DayPollInterval  time.Duration `env:"DAY_POLL_INTERVAL" envDefault:"1s"`
	RegisterCommands bool          `env:"INIT_SLASH_COMMANDS" envDefault:"true"`
}

// Config is the merged runtime configuration.
type Config struct {
	Token             string
	DayChannelID      string
	PresenceChannelID string

	LogLevel         string
	RotateInterval   time.Duration
	DayPollInterval  time.Duration
	RegisterCommands bool
}

// Load reads the env config, then the settings file. Settings read/parse
// failures are downgraded to defaults and logged; only a missing token makes
// the result unusable.
func Load(log zerolog.Logger) (*Config, error) {
	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	settings, err := readSettings(ec.SettingsPath)
	if err != nil {
		log.Warn().Err(err).Str("path", ec.SettingsPath).Msg("using default settings")
		settings = DefaultSettings()
	}

	token := settings.Token
	if ec.DiscordToken != "" {
		token = ec.DiscordToken
	}
	if token == "" || token == DefaultSettings().Token {
		return nil, errors.New("no Discord token in settings.json or DISCORD_TOKEN")
	}

	return &Config{
		Token:             token,
		DayChannelID:      formatID(settings.DayChannelID),
		PresenceChannelID: formatID(settings.PresenceChannelID),
		LogLevel:          ec.LogLevel,
		RotateInterval:    ec.RotateInterval,
		DayPollInterval:   ec.DayPollInterval,
		RegisterCommands:  ec.RegisterCommands,
	}, nil
}

func readSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	return s, nil
}

func formatID(id uint64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatUint(id, 10)
}
