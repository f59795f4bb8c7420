package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"schilliger-bot/internal/config"
	"schilliger-bot/internal/discord"
	"schilliger-bot/internal/logging"
	"schilliger-bot/internal/version"
)

func main() {
	log := logging.New(os.Getenv("LOG_LEVEL"))
	log.Info().Str("version", version.AppVersion).Msgf("starting %s", version.AppName)

	cfg, err := config.Load(log)
	if err != nil {
		log.Fatal().Err(err).Msg("configuration error")
	}
	log = logging.New(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bot := discord.NewBot(cfg, log)

	errCh := make(chan error, 1)
	go func() {
		if err := bot.Run(ctx); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("shutting down")
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("discord bot error")
		}
		cancel()
	}

	log.Info().Msg("discord bot exited cleanly")
}
