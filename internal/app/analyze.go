package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"listing-radar/internal/service"
)

// Analyze runs a one-shot readiness analysis for a single asset and prints
// the outcome. Nothing is persisted and no alerts are dispatched.
func (a *App) Analyze(ctx context.Context, opts AnalyzeOptions) error {
	if opts.AssetID == "" {
		return errors.New("--asset is required")
	}

	svc := service.New(a.Config, nil, a.newLedger(), a.newMarketFetcher(),
		a.newSupplyReader(), a.newPlanner(), nil, nil, nil, a.Logger)

	bucket := time.Now().UTC().Truncate(a.Config.Monitor.Interval)
	report, err := svc.AnalyzeAsset(ctx, opts.AssetID, bucket)
	if err != nil {
		return err
	}

	if opts.JSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	}

	printReport(report)
	return nil
}

func printReport(report *service.Report) {
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	fmt.Fprintf(writer, "Asset\t%s\n", report.AssetID)
	if report.Asset.Metadata.Ticker != "" {
		fmt.Fprintf(writer, "Ticker\t%s\n", report.Asset.Metadata.Ticker)
	}
	fmt.Fprintf(writer, "Holders\t%d", report.Census.TotalHolders)
	if report.Census.Partial {
		fmt.Fprint(writer, " (lower bound)")
	}
	fmt.Fprintf(writer, "\t(%d page fetches)\n", report.Census.PagesExamined)
	fmt.Fprintf(writer, "Top-10 concentration\t%.2f%%\n", report.Snapshot.Top10ConcentrationPct)
	fmt.Fprintf(writer, "Top-50 concentration\t%.2f%%\n", report.Snapshot.Top50ConcentrationPct)
	fmt.Fprintf(writer, "Gini coefficient\t%.4f\n", report.Snapshot.GiniCoefficient)
	if report.Metrics.MarketDataAvailable {
		fmt.Fprintf(writer, "Liquidity\t$%.0f\n", *report.Metrics.LiquidityUSD)
		fmt.Fprintf(writer, "24h volume\t$%.0f\n", *report.Metrics.Volume24hUSD)
	} else {
		fmt.Fprintln(writer, "Market data\tunavailable (on-chain scoring)")
	}
	fmt.Fprintf(writer, "Readiness score\t%.1f (grade %s)\n", report.Score.TotalScore, report.Score.Grade)
	fmt.Fprintf(writer, "Compliance rate\t%.1f%%\n", report.ComplianceRatePct)
	fmt.Fprintf(writer, "Recommended venues\t%s\n", strings.Join(report.RecommendedVenues, ", "))
	writer.Flush()

	if len(report.NextSteps) > 0 {
		fmt.Println("\nNext steps:")
		for _, step := range report.NextSteps {
			fmt.Printf("  %s\n", step)
		}
	}

	if report.Plan != nil && report.Plan.GapUSD > 0 {
		fmt.Printf("\nLiquidity plan: close a $%.0f gap over %s\n", report.Plan.GapUSD, report.Plan.Duration)
		for _, action := range report.Plan.Actions {
			fmt.Printf("  %s\n", action.Description)
		}
	}

	if len(report.Warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, warning := range report.Warnings {
			fmt.Printf("  %s\n", warning)
		}
	}
}
