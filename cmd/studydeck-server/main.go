package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/at-ishikawa/studydeck/internal/config"
	"github.com/at-ishikawa/studydeck/internal/server"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:           "studydeck-server",
		Short:         "studydeck card scheduling HTTP server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
	rootCmd.Flags().StringVar(&configFile, "config", "", "config file path")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loadConfig() > %w", err)
	}
	return server.Serve(ctx, cfg)
}

func loadConfig() (*config.Config, error) {
	path := configFile
	if path == "" {
		path = os.Getenv("STUDYDECK_CONFIG")
	}
	loader, err := config.NewConfigLoader(path)
	if err != nil {
		return nil, fmt.Errorf("config.NewConfigLoader() > %w", err)
	}
	return loader.Load()
}
