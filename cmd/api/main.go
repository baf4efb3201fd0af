package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/dental-api/internal/config"
	"github.com/jwalitptl/dental-api/pkg/logger"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "dental-api",
		Short:         "Dental clinic back office API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "directory containing config.yaml")

	root.AddCommand(newServeCmd(), newMigrateCmd())

	if err := root.Execute(); err != nil {
		logger.NewLogger(nil).Error(err, "Command failed")
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadConfig(configPath)
	}
	return config.LoadConfig()
}

func newLogger(cfg config.LogConfig) *logger.Logger {
	return logger.NewLogger(&logger.Config{
		Level:  logger.ParseLevel(cfg.Level),
		Format: cfg.Format,
	})
}
