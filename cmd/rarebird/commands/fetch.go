package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"rarebird/lib/credentials"
	"rarebird/lib/ebird"
	"rarebird/lib/export"
	"rarebird/lib/notify"
	"rarebird/lib/observation"
	"rarebird/lib/serviceutil"
	"rarebird/lib/store"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type fetchOptions struct {
	region   string
	hotspot  string
	species  string
	lat      float64
	lng      float64
	dist     float64
	geo      bool
	back     int
	max      int
	notable  bool
	counties []string
	out      string
	prefix   string
	db       string
	email    bool
	title    string
	apiURL   string
}

var errNoLocator = errors.New("specify one of --region, --hotspot, --species with --region, or --lat and --lng")

// locator picks the query target from the flags.
func (o fetchOptions) locator() (ebird.Locator, error) {
	set := 0
	for _, ok := range []bool{o.geo, o.hotspot != "", o.region != "" || o.species != ""} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return ebird.Locator{}, errNoLocator
	}

	switch {
	case o.geo:
		return ebird.Geo(o.lat, o.lng, o.dist), nil
	case o.hotspot != "":
		return ebird.Hotspot(o.hotspot), nil
	case o.species != "":
		if o.region == "" {
			return ebird.Locator{}, errNoLocator
		}
		return ebird.Species(o.region, o.species), nil
	}
	return ebird.Region(o.region), nil
}

func (o fetchOptions) label() string {
	switch {
	case o.geo:
		return fmt.Sprintf("%g,%g", o.lat, o.lng)
	case o.hotspot != "":
		return o.hotspot
	}
	return o.region
}

func addFetchFlags(cmd *cobra.Command, o *fetchOptions, back int, prefix string) {
	cmd.Flags().IntVar(&o.back, "back", back, "Days to look back (1-30).")
	cmd.Flags().IntVar(&o.max, "max", ebird.DefaultMaxResults, "Maximum number of results to fetch.")
	cmd.Flags().StringArrayVar(&o.counties, "county", nil, "Only keep observations whose location contains this text, repeatable.")
	cmd.Flags().StringVar(&o.out, "out", ".", "Directory to write the CSV and JSON artifacts to.")
	cmd.Flags().StringVar(&o.prefix, "prefix", prefix, "Artifact filename prefix.")
	cmd.Flags().StringVar(&o.db, "db", "", "Also record the observations in this history database (sqlite path or libsql url).")
	cmd.Flags().BoolVar(&o.email, "email", false, "E-mail a digest of the observations using the email section of the config.")
	cmd.Flags().StringVar(&o.apiURL, "api-url", ebird.DefaultBaseURL, "eBird API base url.")
	cmd.Flags().MarkHidden("api-url")
}

var fetchOpts fetchOptions

func init() {
	fetchCmd.Flags().StringVar(&fetchOpts.region, "region", "", "Region code, e.g. US-NY or US-NY-061.")
	fetchCmd.Flags().StringVar(&fetchOpts.hotspot, "hotspot", "", "Hotspot location id, e.g. L99381.")
	fetchCmd.Flags().StringVar(&fetchOpts.species, "species", "", "Species code, requires --region.")
	fetchCmd.Flags().Float64Var(&fetchOpts.lat, "lat", 0, "Latitude for a nearby query.")
	fetchCmd.Flags().Float64Var(&fetchOpts.lng, "lng", 0, "Longitude for a nearby query.")
	fetchCmd.Flags().Float64Var(&fetchOpts.dist, "dist", ebird.DefaultDistance, "Radius in km for a nearby query.")
	fetchCmd.Flags().BoolVar(&fetchOpts.notable, "notable", false, "Only notable (rare) observations, region queries only.")
	addFetchFlags(fetchCmd, &fetchOpts, ebird.DefaultBack, "ebird_observations")
	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch (--region <code> | --hotspot <id> | --species <code> --region <code> | --lat <lat> --lng <lng>)",
	Short: "Fetches observations from the eBird API and writes them to CSV and JSON.",
	Run: func(cmd *cobra.Command, args []string) {
		fetchOpts.geo = cmd.Flags().Changed("lat") || cmd.Flags().Changed("lng")
		runFetch(cmd.Context(), fetchOpts)
	},
}

func runFetch(ctx context.Context, o fetchOptions) {
	cfg := mustLoadConfig()

	loc, err := o.locator()
	if err != nil {
		serviceutil.Fatal("invalid query", err)
	}

	key, src, err := credentials.Resolver{Config: cfg.Config}.APIKey()
	if err != nil {
		serviceutil.Fatal("failed to resolve api key", err)
	}
	slog.Debug("loaded api key", "source", src)

	counties := o.counties
	if len(counties) == 0 {
		counties = cfg.Counties
	}

	printQuery(o, loc, counties)

	lock, err := lockDir(o.out)
	if err != nil {
		serviceutil.Fatal("failed to lock output directory", err)
	}
	defer lock.Unlock()

	client := ebird.NewClient(ebird.ClientOptions{Token: key, BaseUrl: o.apiURL, HttpOutput: httpOutput()})
	res := client.Fetch(ctx, loc, ebird.Query{Back: o.back, MaxResults: o.max, Notable: o.notable})
	switch res.Outcome {
	case ebird.OutcomeFailed:
		slog.Error("failed to fetch observations", "err", res.Err)
	case ebird.OutcomeNotFound:
		slog.Warn("no data for query", "err", res.Err)
	}

	raws := res.Records
	if len(counties) > 0 {
		raws = observation.FilterRawByLocation(observation.SchemaAPI, raws, counties)
		fmt.Printf("Filtered to %d observations in %s.\n", len(raws), strings.Join(counties, ", "))
	}
	if len(raws) == 0 {
		fmt.Println("No observations found in the specified timeframe.")
		return
	}
	obs := observation.NormalizeRaws(observation.SchemaAPI, raws)

	batch := export.Exporter{Dir: o.out, Prefix: o.prefix}.Batch()
	fetchedAt := batch.Now()
	csvPath, err := batch.SaveCSV(ctx, export.Rows(obs), "")
	if err != nil {
		serviceutil.Fatal("failed to write csv", err)
	}
	jsonPath, err := export.SaveJSON(ctx, batch, raws, "")
	if err != nil {
		serviceutil.Fatal("failed to write json", err)
	}

	dsn := o.db
	if dsn == "" {
		dsn = cfg.Database
	}
	if dsn != "" {
		saveHistory(ctx, dsn, fetchedAt, obs)
	}
	if o.email {
		sendDigest(ctx, cfg, o.label(), obs)
	}

	printSummary(obs)
	printSaved(csvPath, jsonPath)
}

func saveHistory(ctx context.Context, dsn string, fetchedAt time.Time, obs []observation.Observation) {
	db, err := store.Open(ctx, dsn)
	if err != nil {
		serviceutil.Fatal("failed to open history database", err)
	}
	defer db.Close()

	runID := store.NewRunID()
	err = db.Save(ctx, runID, fetchedAt, obs)
	if err != nil {
		serviceutil.Fatal("failed to save history", err)
	}
	slog.Info("recorded run", "run_id", runID, "records", len(obs))
}

func sendDigest(ctx context.Context, cfg Config, region string, obs []observation.Observation) {
	if cfg.Email == nil {
		slog.Warn("--email given but the config has no email section, digest not sent")
		return
	}
	digest := notify.Digest{Smtp: cfg.Email.Smtp, To: cfg.Email.To}
	err := digest.Send(ctx, region, obs)
	if err != nil {
		slog.Error("failed to send digest", "err", err)
	}
}
