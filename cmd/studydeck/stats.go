package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/at-ishikawa/studydeck/internal/client"
	"github.com/at-ishikawa/studydeck/internal/statistics"
)

func newStatsCommand() *cobra.Command {
	var course string
	var remote bool
	var filter statistics.Filter
	command := &cobra.Command{
		Use:   "stats",
		Short: "Show study statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if filter.Month < 0 || filter.Month > 12 {
				return fmt.Errorf("month %d is outside [1, 12]", filter.Month)
			}
			if filter.Month != 0 && filter.Year == 0 {
				return fmt.Errorf("--month requires --year")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			var result statistics.Result
			if remote {
				apiClient := client.New(cfg.Client)
				defer func() {
					_ = apiClient.Close()
				}()
				result, err = apiClient.Stats(cmd.Context(), course, filter)
				if err != nil {
					return fmt.Errorf("client.Stats() > %w", err)
				}
			} else {
				sched, repo, closeFn, err := localStore(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				defer closeFn()

				cards, err := repo.FindAll(cmd.Context(), course)
				if err != nil {
					return fmt.Errorf("repo.FindAll() > %w", err)
				}
				logs, err := repo.FindReviewLogs(cmd.Context(), course)
				if err != nil {
					return fmt.Errorf("repo.FindReviewLogs() > %w", err)
				}
				result = statistics.Calculate(cards, logs, sched.Now(), filter)
			}
			return printStatistics(cmd.OutOrStdout(), result)
		},
	}
	addCourseFlag(command.Flags(), &course)
	addRemoteFlag(command.Flags(), &remote)
	command.Flags().IntVar(&filter.Year, "year", 0, "only review activity of this year")
	command.Flags().IntVar(&filter.Month, "month", 0, "only review activity of this month, requires --year")
	return command
}

func printStatistics(w io.Writer, result statistics.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COURSE\tTOTAL\tDUE\tNEW\tLEARNING\tREVIEW\tRELEARNING\tMASTERED\tTODAY\tACCURACY\tSTREAK")
	rows := append([]statistics.Summary{}, result.Courses...)
	overall := result.Overall
	overall.Course = "(all)"
	rows = append(rows, overall)
	for _, s := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%.1f%%\t%d\n",
			s.Course, s.TotalCards, s.DueNow, s.New, s.Learning, s.Review, s.Relearning,
			s.Mastered, s.ReviewedToday, s.Accuracy, s.StreakDays)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(result.Periods) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PERIOD\tREVIEWS\tFIRST SUCCESSES\tLAPSES\tLAPSED CARDS")
	for _, p := range result.Periods {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", p.Period, p.Reviews, p.FirstSuccesses, p.Lapses, p.LapsesUnique)
	}
	return tw.Flush()
}
