package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"listing-radar/internal/storage"
)

// Export renders stored readiness reports as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.AssetID == "" {
		return errors.New("--asset is required")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Monitor.Interval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	reports, err := store.ListReportsBetween(ctx, opts.AssetID, from, to)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		a.Logger.Info().Str("asset", opts.AssetID).Msg("no reports found for export window")
		return nil
	}

	downsampled := downsampleReports(reports, opts.MaxPoints)
	a.Logger.Info().Int("total", len(reports)).Int("exported", len(downsampled)).Msg("exporting reports")

	if opts.CSVPath != "" {
		if err := writeReportsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeReportsPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleReports(reports []storage.AnalysisReport, max int) []storage.AnalysisReport {
	if max <= 0 || len(reports) <= max {
		return reports
	}

	result := make([]storage.AnalysisReport, 0, max)
	step := float64(len(reports)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(reports) {
			idx = len(reports) - 1
		}
		result = append(result, reports[idx])
	}
	return result
}

func writeReportsCSV(path string, reports []storage.AnalysisReport) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"bucket_ts", "asset_id", "total_holders", "top10_pct", "top50_pct", "gini", "liquidity_usd", "volume_24h_usd", "total_score", "grade", "status"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, report := range reports {
		record := []string{
			report.Bucket.Format(time.RFC3339),
			report.AssetID,
			strconv.Itoa(report.TotalHolders),
			fmt.Sprintf("%.2f", report.Top10Pct),
			fmt.Sprintf("%.2f", report.Top50Pct),
			fmt.Sprintf("%.4f", report.Gini),
			formatOptional(report.LiquidityUSD),
			formatOptional(report.Volume24hUSD),
			fmt.Sprintf("%.1f", report.TotalScore),
			report.Grade,
			report.Status,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeReportsPNG(path string, reports []storage.AnalysisReport) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(reports))
	score := make([]float64, len(reports))
	top10 := make([]float64, len(reports))
	holders := make([]float64, len(reports))

	for i, report := range reports {
		x[i] = report.Bucket
		score[i] = report.TotalScore
		top10[i] = report.Top10Pct
		holders[i] = float64(report.TotalHolders)
	}

	pctFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.1f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Score / Concentration (%)",
			ValueFormatter: pctFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Holders",
			ValueFormatter: pctFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Readiness Score",
				XValues: x,
				YValues: score,
			},
			chart.TimeSeries{
				Name:    "Top-10 %",
				XValues: x,
				YValues: top10,
			},
			chart.TimeSeries{
				Name:    "Holders",
				XValues: x,
				YValues: holders,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *v)
}
