package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/at-ishikawa/studydeck/internal/card"
	"github.com/at-ishikawa/studydeck/internal/client"
	"github.com/at-ishikawa/studydeck/internal/datasync"
	"github.com/at-ishikawa/studydeck/internal/pdf"
)

func newCardsCommand() *cobra.Command {
	cardsCommand := &cobra.Command{
		Use:   "cards",
		Short: "Card management commands",
	}

	cardsCommand.AddCommand(
		newCardsListCommand(),
		newCardsAddCommand(),
		newCardsImportCommand(),
		newCardsExportCommand(),
		newCardsPrintCommand(),
	)
	return cardsCommand
}

func newCardsListCommand() *cobra.Command {
	var course string
	var remote bool
	command := &cobra.Command{
		Use:   "list",
		Short: "List cards with their schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			var cards []card.Card
			if remote {
				apiClient := client.New(cfg.Client)
				defer func() {
					_ = apiClient.Close()
				}()
				cards, err = apiClient.Cards(cmd.Context(), course)
				if err != nil {
					return fmt.Errorf("client.Cards() > %w", err)
				}
			} else {
				_, repo, closeFn, err := localStore(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				defer closeFn()
				cards, err = repo.FindAll(cmd.Context(), course)
				if err != nil {
					return fmt.Errorf("repo.FindAll() > %w", err)
				}
			}
			return printCards(cmd.OutOrStdout(), cards)
		},
	}
	addCourseFlag(command.Flags(), &course)
	addRemoteFlag(command.Flags(), &remote)
	return command
}

func printCards(w io.Writer, cards []card.Card) error {
	if len(cards) == 0 {
		_, err := fmt.Fprintln(w, "No cards.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOURSE\tTYPE\tPHASE\tINTERVAL\tDUE\tQUESTION")
	for _, c := range cards {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n",
			c.ID, c.Course, c.Type, c.Phase(), c.Interval, c.DueAt.Local().Format(time.DateOnly), c.Question)
	}
	return tw.Flush()
}

func newCardsAddCommand() *cobra.Command {
	var c card.Card
	var cardType string
	var options []string
	var remote bool
	command := &cobra.Command{
		Use:   "add",
		Short: "Add a card that is due immediately",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.Type = card.Type(cardType)
			c.Options = options

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			service, closeFn, err := openService(cmd.Context(), cfg, remote)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := service.AddCard(cmd.Context(), &c); err != nil {
				return fmt.Errorf("AddCard() > %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added card %d\n", c.ID)
			return nil
		},
	}
	flags := command.Flags()
	flags.StringVar(&cardType, "type", string(card.TypeBasic), "card type: basic or mcq")
	flags.StringVarP(&c.Question, "question", "q", "", "question")
	flags.StringVarP(&c.Answer, "answer", "a", "", "answer of a basic card")
	flags.StringSliceVar(&options, "option", nil, "option of a multiple choice card, repeatable")
	flags.StringVar(&c.CorrectAnswer, "correct-answer", "", "the correct option of a multiple choice card")
	flags.StringVar(&c.Course, "course", "", "course of the card")
	addRemoteFlag(flags, &remote)
	_ = command.MarkFlagRequired("question")
	return command
}

func newCardsImportCommand() *cobra.Command {
	var opts datasync.ImportOptions
	command := &cobra.Command{
		Use:   "import <deck-directory>",
		Short: "Import cards from YAML deck files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			sched, repo, closeFn, err := localStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			return importDecks(cmd, datasync.NewImporter(repo, sched.Now, cmd.OutOrStdout()), args[0], opts)
		},
	}
	command.Flags().BoolVar(&opts.DryRun, "dry-run", false, "show what would be imported without writing")
	command.Flags().BoolVar(&opts.KeepSchedule, "keep-schedule", false, "keep the scheduling state and review logs stored in the deck files")
	return command
}

func importDecks(cmd *cobra.Command, importer *datasync.Importer, dir string, opts datasync.ImportOptions) error {
	cards, err := datasync.LoadDecks(cmd.Context(), dir)
	if err != nil {
		return fmt.Errorf("datasync.LoadDecks(%s) > %w", dir, err)
	}
	if opts.KeepSchedule {
		opts.ReviewLogs, err = datasync.LoadReviewLogs(dir)
		if err != nil {
			return fmt.Errorf("datasync.LoadReviewLogs(%s) > %w", dir, err)
		}
	}
	result, err := importer.Import(cmd.Context(), cards, opts)
	if err != nil {
		return fmt.Errorf("importer.Import() > %w", err)
	}

	prefix := ""
	if opts.DryRun {
		prefix = "[dry run] "
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s%d new, %d skipped, %d invalid", prefix, result.New, result.Skipped, result.Invalid)
	if opts.KeepSchedule && !opts.DryRun {
		fmt.Fprintf(cmd.OutOrStdout(), ", %d review log(s)", result.ReviewLogs)
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}

func newCardsExportCommand() *cobra.Command {
	var courses []string
	command := &cobra.Command{
		Use:   "export <directory>",
		Short: "Export cards and review logs as YAML deck files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			_, repo, closeFn, err := localStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			result, err := datasync.NewExporter(repo).Export(cmd.Context(), args[0], courses...)
			if err != nil {
				return fmt.Errorf("exporter.Export() > %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d card(s) in %d deck(s) and %d review log(s) to %s\n",
				result.Cards, result.Decks, result.ReviewLogs, args[0])
			return nil
		},
	}
	command.Flags().StringSliceVar(&courses, "course", nil, "export only these courses, repeatable")
	return command
}

func newCardsPrintCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "print <course> <file.pdf>",
		Short: `Write the cards of a course to a PDF file ("" for every course)`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			course, pdfPath := args[0], args[1]

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			_, repo, closeFn, err := localStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			cards, err := repo.FindAll(cmd.Context(), course)
			if err != nil {
				return fmt.Errorf("repo.FindAll() > %w", err)
			}
			output, err := pdf.WriteDeck(pdfPath, course, cards)
			if err != nil {
				return fmt.Errorf("pdf.WriteDeck() > %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d card(s) to %s\n", len(cards), output)
			return nil
		},
	}
}
