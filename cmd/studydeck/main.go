package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/at-ishikawa/studydeck/internal/card"
	"github.com/at-ishikawa/studydeck/internal/client"
	"github.com/at-ishikawa/studydeck/internal/config"
	"github.com/at-ishikawa/studydeck/internal/scheduler"
	"github.com/at-ishikawa/studydeck/internal/storage"
)

var (
	configFile string
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if _, fprintfErr := fmt.Fprintf(os.Stderr, "failed to execute a command: %+v\n", err); fprintfErr != nil {
			panic(fmt.Errorf("failed to output an error: %w. Reason: %w", err, fprintfErr))
		}
		os.Exit(1)
	}
	os.Exit(0)
}

func newRootCommand() *cobra.Command {
	var debugMode bool
	rootCommand := &cobra.Command{
		Use:           "studydeck",
		Short:         "Spaced repetition flashcards",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogger(debugMode)
			return nil
		},
	}
	rootCommand.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default $STUDYDECK_CONFIG or ./config.yml)")
	rootCommand.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug mode")

	rootCommand.AddCommand(
		newServeCommand(),
		newStudyCommand(),
		newNextCommand(),
		newReviewCommand(),
		newCardsCommand(),
		newDecksCommand(),
		newStatsCommand(),
		newMigrateCommand(),
	)
	return rootCommand
}

// setupLogger configures the default logger based on debug mode
func setupLogger(debugMode bool) {
	logLevel := slog.LevelInfo
	if debugMode {
		logLevel = slog.LevelDebug
	}

	slog.SetDefault(
		slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		})),
	)
}

func loadConfig() (*config.Config, error) {
	path := configFile
	if path == "" {
		path = os.Getenv("STUDYDECK_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func addCourseFlag(flags *pflag.FlagSet, course *string) {
	flags.StringVar(course, "course", "", "only cards of this course (default all courses)")
}

func addRemoteFlag(flags *pflag.FlagSet, remote *bool) {
	flags.BoolVar(remote, "remote", false, "use the API server at client.base_url instead of the local store")
}

// localStore opens the configured repository with a scheduler on top.
// The returned function closes the repository.
func localStore(ctx context.Context, cfg *config.Config) (*scheduler.Scheduler, card.Repository, func(), error) {
	repo, closeRepo, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("storage.Open() > %w", err)
	}
	closeFn := func() {
		if err := closeRepo(); err != nil {
			slog.Warn("failed to close the card store", "error", err)
		}
	}
	return scheduler.New(repo), repo, closeFn, nil
}

// cardService is implemented by both the local scheduler and the API client.
type cardService interface {
	NextDueCard(ctx context.Context, course string) (*card.Card, error)
	RecordReview(ctx context.Context, cardID int64, quality int) (*card.Card, error)
	AddCard(ctx context.Context, c *card.Card) error
}

func openService(ctx context.Context, cfg *config.Config, remote bool) (cardService, func(), error) {
	if remote {
		apiClient := client.New(cfg.Client)
		slog.Debug("using the API server", "base_url", cfg.Client.BaseURL)
		return apiClient, func() { _ = apiClient.Close() }, nil
	}
	sched, _, closeFn, err := localStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return sched, closeFn, nil
}
