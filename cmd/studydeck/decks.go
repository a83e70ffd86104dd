package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/at-ishikawa/studydeck/internal/datasync"
)

func newDecksCommand() *cobra.Command {
	decksCommand := &cobra.Command{
		Use:   "decks",
		Short: "Deck repository commands",
	}
	decksCommand.AddCommand(newDecksSyncCommand())
	return decksCommand
}

func newDecksSyncCommand() *cobra.Command {
	var opts datasync.ImportOptions
	command := &cobra.Command{
		Use:   "sync <git-url>",
		Short: "Clone or pull a git repository of decks and import its cards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			source := datasync.NewGitSource(cfg.Decks.RepositoriesDirectory, cmd.ErrOrStderr())
			dir, err := source.Sync(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("source.Sync(%s) > %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Synced %s into %s\n", args[0], dir)

			sched, repo, closeFn, err := localStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			return importDecks(cmd, datasync.NewImporter(repo, sched.Now, cmd.OutOrStdout()), dir, opts)
		},
	}
	command.Flags().BoolVar(&opts.DryRun, "dry-run", false, "show what would be imported without writing")
	return command
}
