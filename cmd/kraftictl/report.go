package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"krafti/internal/db"
	"krafti/internal/reports"
)

func newReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Read-only business reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newReportRevenueCommand())
	return cmd
}

func newReportRevenueCommand() *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "revenue",
		Short: "Sum paid orders per course for a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := time.Parse(time.DateOnly, from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			end, err := time.Parse(time.DateOnly, to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			if end.Before(start) {
				return fmt.Errorf("--to %s is before --from %s", to, from)
			}

			ctx, cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			pool, err := db.OpenPool(ctx, cfg.DBDSN)
			if err != nil {
				return fmt.Errorf("open pool: %w", err)
			}
			defer pool.Close()

			rows, err := reports.New(pool).Revenue(ctx, start, end.AddDate(0, 0, 1))
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "COURSE\tTITLE\tORDERS\tREVENUE")
			for _, r := range rows {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%d\n", r.CourseID, r.Title, r.Orders, r.Revenue)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "First day, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "Last day inclusive, YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
