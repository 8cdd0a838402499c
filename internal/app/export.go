package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"merchant-metrics-pipeline/internal/storage"
)

// Export writes the joined daily metrics as CSV and/or renders them as a
// PNG trend chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	maxDays := a.Config.ResolveMaxChartDays(opts.MaxDays)

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

	rows, err := store.ListExportRows(ctx)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		a.Logger.Info().Msg("no metric rows found for export")
		return nil
	}

	if opts.CSVPath != "" {
		if err := writeMetricsCSV(opts.CSVPath, rows); err != nil {
			return err
		}
		a.Logger.Info().Int("rows", len(rows)).Str("path", opts.CSVPath).Msg("metrics exported")
	}

	if opts.PNGPath != "" {
		points := downsampleDays(dailyTotals(rows), maxDays)
		if len(points) < 2 {
			a.Logger.Warn().Int("days", len(points)).Msg("not enough days to render a chart; skipping png")
			return nil
		}
		if err := writeMetricsPNG(opts.PNGPath, points); err != nil {
			return err
		}
		a.Logger.Info().Int("days", len(points)).Str("path", opts.PNGPath).Msg("chart rendered")
	}

	return nil
}

// dailyPoint is one chart sample: totals across all merchants for a day.
type dailyPoint struct {
	date     time.Time
	gross    float64
	txns     int64
	approved int64
	rate     float64
}

func dailyTotals(rows []storage.MetricExportRow) []dailyPoint {
	totals := make(map[string]*dailyPoint)
	order := make([]string, 0)

	// Rows arrive sorted by metric date, so first-seen key order is
	// chronological.
	for _, row := range rows {
		key := row.MetricDate.Format("2006-01-02")
		p, ok := totals[key]
		if !ok {
			p = &dailyPoint{date: row.MetricDate}
			totals[key] = p
			order = append(order, key)
		}
		p.gross += row.GrossAmount.InexactFloat64()
		p.txns += row.TxnCount
		p.approved += row.ApprovedTxnCount
	}

	points := make([]dailyPoint, 0, len(order))
	for _, key := range order {
		p := totals[key]
		if p.txns > 0 {
			p.rate = float64(p.approved) / float64(p.txns)
		}
		points = append(points, *p)
	}
	return points
}

func downsampleDays(points []dailyPoint, max int) []dailyPoint {
	if max <= 0 || len(points) <= max {
		return points
	}
	if max == 1 {
		return points[:1]
	}

	result := make([]dailyPoint, 0, max)
	step := float64(len(points)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(points) {
			idx = len(points) - 1
		}
		result = append(result, points[idx])
	}
	return result
}

func writeMetricsCSV(path string, rows []storage.MetricExportRow) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{
		"metric_date", "merchant_id", "merchant_name", "category", "city", "state",
		"txn_count", "approved_txn_count", "declined_txn_count",
		"gross_amount", "approved_amount", "approval_rate", "avg_ticket",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, row := range rows {
		record := []string{
			row.MetricDate.Format("2006-01-02"),
			row.MerchantID,
			row.MerchantName,
			row.Category,
			row.City,
			row.State,
			strconv.FormatInt(row.TxnCount, 10),
			strconv.FormatInt(row.ApprovedTxnCount, 10),
			strconv.FormatInt(row.DeclinedTxnCount, 10),
			formatDecimal(row.GrossAmount, 2),
			formatDecimal(row.ApprovedAmount, 2),
			formatDecimal(row.ApprovalRate, 4),
			formatDecimal(row.AvgTicket, 2),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeMetricsPNG(path string, points []dailyPoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(points))
	gross := make([]float64, len(points))
	rate := make([]float64, len(points))
	for i, p := range points {
		x[i] = p.date
		gross[i] = p.gross
		rate[i] = p.rate
	}

	amountFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Gross volume",
			ValueFormatter: amountFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Approval rate",
			ValueFormatter: amountFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Gross volume",
				XValues: x,
				YValues: gross,
			},
			chart.TimeSeries{
				Name:    "Approval rate",
				XValues: x,
				YValues: rate,
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

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
