package commands

import (
	"fmt"
	"rarebird/lib/browser"
	"rarebird/lib/credentials"
	"rarebird/lib/export"
	"rarebird/lib/observation"
	"rarebird/lib/scrapers/ebirdalert"
	"rarebird/lib/serviceutil"
	"time"

	"github.com/spf13/cobra"
)

var (
	scrapeEngine   *string
	scrapeHeadless *bool
	scrapeUrl      *string
	scrapeOut      *string
	scrapeDebugDir *string
	scrapeSettle   *time.Duration
	scrapeDb       *string
)

func init() {
	scrapeEngine = scrapeCmd.Flags().String("engine", string(browser.EngineChrome), "Browser engine, chrome renders javascript, http only submits forms.")
	scrapeHeadless = scrapeCmd.Flags().Bool("headless", true, "Run chrome without a window.")
	scrapeUrl = scrapeCmd.Flags().String("url", ebirdalert.DefaultAlertURL, "Alert summary page to scrape.")
	scrapeOut = scrapeCmd.Flags().String("out", ".", "Directory to write the CSV to.")
	scrapeDebugDir = scrapeCmd.Flags().String("debug-dir", ".", "Directory for the page dump and error screenshot.")
	scrapeSettle = scrapeCmd.Flags().Duration("settle", ebirdalert.DefaultSettle, "Time to let the page settle after login.")
	scrapeDb = scrapeCmd.Flags().String("db", "", "Also record the normalized alerts in this history database.")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--engine chrome|http]",
	Short: "Logs in to eBird and scrapes the rare bird alert summary page.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		cfg := mustLoadConfig()

		resolver := credentials.Resolver{
			Config:   cfg.Config,
			Prompter: credentials.NewTerminalPrompter(),
		}
		username, password, err := resolver.Login()
		if err != nil {
			serviceutil.Fatal("failed to resolve login", err)
		}

		lock, err := lockDir(*scrapeOut)
		if err != nil {
			serviceutil.Fatal("failed to lock output directory", err)
		}
		defer lock.Unlock()

		opts := ebirdalert.Options{
			Username: username,
			Password: password,
			AlertURL: *scrapeUrl,
			DebugDir: *scrapeDebugDir,
			Settle:   *scrapeSettle,
			Browser: browser.Options{
				Engine:     browser.Engine(*scrapeEngine),
				Headless:   *scrapeHeadless,
				HttpOutput: httpOutput(),
			},
		}

		var alerts []observation.ScrapedAlert
		err = ebirdalert.With(ctx, opts, func(s *ebirdalert.Scraper) error {
			err := s.Login(ctx)
			if err != nil {
				return err
			}
			alerts, err = s.Scrape(ctx)
			return err
		})
		if err != nil {
			serviceutil.Fatal("failed to scrape alerts", err)
		}

		if len(alerts) == 0 {
			fmt.Println("No alerts found. The page structure may have changed.")
			fmt.Printf("Check %s and update the selectors.\n", ebirdalert.DebugPageFile)
			return
		}

		batch := export.Exporter{Dir: *scrapeOut, Prefix: "ebird_alerts"}.Batch()
		fetchedAt := batch.Now()
		path, err := batch.SaveCSV(ctx, export.Rows(alerts), "")
		if err != nil {
			serviceutil.Fatal("failed to write csv", err)
		}

		obs := observation.NormalizeAlerts(alerts)
		dsn := *scrapeDb
		if dsn == "" {
			dsn = cfg.Database
		}
		if dsn != "" {
			saveHistory(ctx, dsn, fetchedAt, obs)
		}

		printSummary(obs)
		printSaved(path)
	},
}
