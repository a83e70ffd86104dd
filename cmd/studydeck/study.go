package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/at-ishikawa/studydeck/internal/cli"
	"github.com/at-ishikawa/studydeck/internal/scheduler"
	"github.com/at-ishikawa/studydeck/internal/server"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return server.Serve(cmd.Context(), cfg)
		},
	}
}

func newStudyCommand() *cobra.Command {
	var course string
	var remote bool
	command := &cobra.Command{
		Use:   "study",
		Short: "Review due cards interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			service, closeFn, err := openService(cmd.Context(), cfg, remote)
			if err != nil {
				return err
			}
			defer closeFn()

			session := cli.NewStudySession(service, course, cmd.InOrStdin(), cmd.OutOrStdout())
			return session.Run(cmd.Context())
		},
	}
	addCourseFlag(command.Flags(), &course)
	addRemoteFlag(command.Flags(), &remote)
	return command
}

func newNextCommand() *cobra.Command {
	var course string
	var remote bool
	command := &cobra.Command{
		Use:   "next",
		Short: "Show the next due card without rating it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			service, closeFn, err := openService(cmd.Context(), cfg, remote)
			if err != nil {
				return err
			}
			defer closeFn()

			next, err := service.NextDueCard(cmd.Context(), course)
			if err != nil {
				return fmt.Errorf("NextDueCard() > %w", err)
			}
			out := cmd.OutOrStdout()
			if next == nil {
				fmt.Fprintln(out, server.NoCardsDueMessage)
				return nil
			}
			fmt.Fprintf(out, "#%d", next.ID)
			if next.Course != "" {
				fmt.Fprintf(out, " [%s]", next.Course)
			}
			fmt.Fprintf(out, " %s\n", next.Question)
			for i, option := range next.Options {
				fmt.Fprintf(out, "  %d) %s\n", i+1, option)
			}
			fmt.Fprintf(out, "phase: %s, due since %s\n", next.Phase(), next.DueAt.Local().Format(time.DateTime))
			return nil
		},
	}
	addCourseFlag(command.Flags(), &course)
	addRemoteFlag(command.Flags(), &remote)
	return command
}

func newReviewCommand() *cobra.Command {
	var remote bool
	command := &cobra.Command{
		Use:   "review <card-id> <quality>",
		Short: "Record a rating (0-5 or hard/medium/easy) for a card",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cardID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("%w: card id %q is not a number", scheduler.ErrInvalidInput, args[0])
			}
			quality, err := scheduler.ParseQuality(args[1])
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			service, closeFn, err := openService(cmd.Context(), cfg, remote)
			if err != nil {
				return err
			}
			defer closeFn()

			updated, err := service.RecordReview(cmd.Context(), cardID, quality)
			if err != nil {
				return fmt.Errorf("RecordReview(%d) > %w", cardID, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Card %d: next review in %d day(s), on %s\n",
				updated.ID, updated.Interval, updated.DueAt.Local().Format(time.DateOnly))
			return nil
		},
	}
	addRemoteFlag(command.Flags(), &remote)
	return command
}

