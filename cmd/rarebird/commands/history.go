package commands

import (
	"errors"
	"rarebird/lib/serviceutil"
	"rarebird/lib/store"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	historyDb    *string
	historyLimit *int
	historyRuns  *bool
)

func init() {
	historyDb = historyCmd.Flags().String("db", "", "History database, defaults to the database in the config.")
	historyLimit = historyCmd.Flags().Int("limit", 20, "Number of observations to show.")
	historyRuns = historyCmd.Flags().Bool("runs", false, "List runs instead of observations.")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [--db <path/to/history.db>]",
	Short: "Shows observations recorded by previous runs.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		cfg := mustLoadConfig()

		dsn := *historyDb
		if dsn == "" {
			dsn = cfg.Database
		}
		if dsn == "" {
			serviceutil.Fatal("no history database", errors.New("pass --db or set database in the config"))
		}

		db, err := store.Open(ctx, dsn)
		if err != nil {
			serviceutil.Fatal("failed to open history database", err)
		}
		defer db.Close()

		if *historyRuns {
			runs, err := db.Runs(ctx)
			if err != nil {
				serviceutil.Fatal("failed to list runs", err)
			}
			t := newTable()
			t.AppendHeader(table.Row{"Run", "Fetched", "Records"})
			for _, r := range runs {
				t.AppendRow(table.Row{r.ID, r.FetchedAt.Format(time.DateTime), r.Records})
			}
			t.Render()
			return
		}

		records, err := db.Recent(ctx, *historyLimit)
		if err != nil {
			serviceutil.Fatal("failed to read history", err)
		}
		t := newTable()
		t.AppendHeader(table.Row{"Fetched", "Species", "Count", "Location", "Date", "Submission"})
		for _, r := range records {
			t.AppendRow(table.Row{
				r.FetchedAt.Format(time.DateTime),
				displayName(r.Observation),
				r.Count.String(),
				r.LocationName,
				r.ObservedAt,
				r.SubmissionID,
			})
		}
		t.Render()
	},
}
