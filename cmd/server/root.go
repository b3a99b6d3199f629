package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/agentoven/studyhall/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "studyhall",
	Short: "Studyhall AI agent service",
	Long: `Studyhall AI serves course-aware chat agents for the LMS.

Configuration is read from the environment, .env.local and .env.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads configuration and sets up the global logger from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.Log)
	return cfg, nil
}

func setupLogging(cfg config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if lvl, err := zerolog.ParseLevel(cfg.Level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
