package cli

import (
	"github.com/spf13/cobra"

	"listing-radar/internal/app"
)

var (
	analyzeAsset string
	analyzeJSON  bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a one-shot readiness analysis for an asset",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.AnalyzeOptions{
			AssetID: analyzeAsset,
			JSON:    analyzeJSON,
		}
		return getApp().Analyze(cmd.Context(), opts)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeAsset, "asset", "", "Asset identifier (policy ID + hex name)")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the full report as JSON")
}
