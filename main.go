package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"marketsnapshot/internal/config"
	"marketsnapshot/internal/logging"
)

func main() {
	flags := pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "", "path to the ticker configuration file")
	flags.String("output-dir", "data/raw", "directory the snapshot and CSV tables are written to")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Bool("pretty", false, "human-readable console logs")
	flags.Parse(os.Args[1:])

	// .env is optional; real environment variables win
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		log := logging.New(logging.Config{Level: "info"})
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logging.New(logging.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty}).
		With().
		Str("run_id", uuid.NewString()).
		Logger()

	// Create context with cancellation for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p, err := newPipeline(cfg, afero.NewOsFs(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up pipeline")
	}
	defer p.close()

	log.Info().Msg("fetching market snapshot")
	snap, _, err := p.run(ctx, time.Now())
	if err != nil {
		p.close()
		log.Fatal().Err(err).Msg("snapshot run failed")
	}
	log.Info().Str("generated_at", snap.GeneratedAt).Msg("snapshot complete")
}
