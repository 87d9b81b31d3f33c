package commands

import (
	"github.com/spf13/cobra"
)

var alertsOpts = fetchOptions{
	region:  "US-NY",
	notable: true,
	title:   "NEW YORK RARE BIRD ALERT (SN35466)",
}

func init() {
	alertsCmd.Flags().StringVar(&alertsOpts.region, "region", alertsOpts.region, "Region code, a county code like US-NY-061 narrows it.")
	addFetchFlags(alertsCmd, &alertsOpts, 7, "ny_rare_birds")
	rootCmd.AddCommand(alertsCmd)
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Fetches the New York rare bird alert, notable observations of the last week.",
	Run: func(cmd *cobra.Command, args []string) {
		runFetch(cmd.Context(), alertsOpts)
	},
}
