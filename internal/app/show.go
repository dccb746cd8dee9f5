package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// Show prints recent readiness reports.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show reports")
	}
	if closeStore != nil {
		defer closeStore()
	}

	reports, err := store.ListRecentReports(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		fmt.Fprintln(os.Stdout, "no reports found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tAsset\tHolders\tTop10%\tGini\tLiquidity\tScore\tGrade\tStatus\tWarnings")

	for _, report := range reports {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%d\t%.1f\t%.3f\t%s\t%.1f\t%s\t%s\t%s\n",
			report.Bucket.UTC().Format(time.RFC3339),
			shortAsset(report.AssetID),
			report.TotalHolders,
			report.Top10Pct,
			report.Gini,
			formatOptional(report.LiquidityUSD),
			report.TotalScore,
			report.Grade,
			report.Status,
			sanitizeInline(strings.Join(report.Warnings, "; ")),
		)
	}

	writer.Flush()
	return nil
}

// shortAsset truncates long hex asset identifiers for tabular output.
func shortAsset(assetID string) string {
	if len(assetID) <= 20 {
		return assetID
	}
	return assetID[:8] + ".." + assetID[len(assetID)-8:]
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
