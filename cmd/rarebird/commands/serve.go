package commands

import (
	"fmt"
	"rarebird/lib/serviceutil"
	"rarebird/lib/telemetry"
	"rarebird/services/birdmap"
	"time"

	"github.com/spf13/cobra"
)

var (
	servePort   *int
	serveSite   *string
	serveData   *string
	servePrefix *string
	servePerf   *time.Duration
)

func init() {
	servePort = serveCmd.Flags().Int("port", 8000, "Port to listen on.")
	serveSite = serveCmd.Flags().String("site", ".", "Directory with the bird map site.")
	serveData = serveCmd.Flags().String("data", "", "Directory with the JSON artifacts, defaults to --site.")
	servePrefix = serveCmd.Flags().String("prefix", birdmap.DefaultPrefix, "Prefix of the artifacts to serve.")
	servePerf = serveCmd.Flags().Duration("perf-interval", telemetry.DefaultPerfInterval, "How often process stats are sampled.")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve [--port 8000]",
	Short: "Serves the bird map and the latest observation data.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		telemetry.InstrumentPerfStats(ctx, *servePerf)

		service := birdmap.NewService(birdmap.Options{
			SiteDir: *serveSite,
			DataDir: *serveData,
			Prefix:  *servePrefix,
		})

		fmt.Printf("Bird map running at http://localhost:%d\n", *servePort)
		fmt.Println("Press Ctrl+C to stop the server.")

		err := serviceutil.StartHttpServer(ctx, *servePort, service.Handler())
		if err != nil {
			serviceutil.Fatal("http server stopped", err)
		}
	},
}
