package cli

import (
	"github.com/spf13/cobra"

	"listing-radar/internal/app"
)

var (
	simulateHolders   int
	simulateTop10     float64
	simulateLiquidity float64
	simulateVolume    float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Run the alert flow against a synthetic asset",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.SimulateOptions{
			Holders:      simulateHolders,
			Top10Pct:     simulateTop10,
			LiquidityUSD: simulateLiquidity,
			Volume24hUSD: simulateVolume,
		}
		return getApp().SimulateAlert(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().IntVar(&simulateHolders, "holders", 1200, "Synthetic holder count")
	simulateCmd.Flags().Float64Var(&simulateTop10, "top10", 45, "Top-10 concentration percentage")
	simulateCmd.Flags().Float64Var(&simulateLiquidity, "liquidity", 60_000, "DEX liquidity in USD")
	simulateCmd.Flags().Float64Var(&simulateVolume, "volume", 8_000, "24h volume in USD")
}
