package main

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/easeaico/roleplay-relay/internal/config"
	"github.com/easeaico/roleplay-relay/internal/logutil"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:          "roleplay",
	Short:        "Roleplay chat relay",
	Long:         "Relays user turns to a chat model with a per-character prompt, memories and conversation log.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "Path to a .env file (ignored when missing)")
	rootCmd.AddCommand(serveCmd, seedCmd, clearCmd, initialCmd, importCmd)
}

// loadConfig reads the .env file, the environment and sets up logging.
func loadConfig() (config.Config, error) {
	if err := godotenv.Load(envFile); err != nil {
		slog.Debug("no .env file found, using environment", "path", envFile)
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := logutil.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return config.Config{}, err
	}
	slog.SetDefault(logger)
	return cfg, nil
}
