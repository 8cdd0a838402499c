package app

import (
	"context"
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"merchant-metrics-pipeline/internal/config"
)

// Merchant roster written by the generator. The ids double as the known
// dimension for generated transactions; m_9999 is deliberately absent.
var generatedMerchants = [][]string{
	{"m_1001", "Sunrise Coffee", "Cafe", "Costa Mesa", "CA"},
	{"m_1002", "Ocean Threads", "Retail", "Huntington Beach", "CA"},
	{"m_1003", "FitLab Gym", "Fitness", "Irvine", "CA"},
	{"m_1004", "ByteMart Electronics", "Electronics", "Anaheim", "CA"},
	{"m_1005", "Taco Town", "Restaurant", "Santa Ana", "CA"},
	{"m_1006", "Green Bowl", "Restaurant", "Tustin", "CA"},
	{"m_1007", "Peak Outdoors", "Retail", "Laguna Beach", "CA"},
}

var generatedPaymentMethods = []string{"CARD", "WALLET"}

// Generate writes seeded sample inputs: a merchant roster plus a batch of
// transactions, optionally with two known-bad records appended. The same
// seed always produces the same files.
func (a *App) Generate(ctx context.Context, opts GenerateOptions) error {
	cfg, err := a.resolveGenerate(opts)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return err
	}

	merchantsPath := filepath.Join(cfg.OutputDir, "merchants.csv")
	if err := writeGeneratedMerchants(merchantsPath); err != nil {
		return err
	}

	txnsPath := filepath.Join(cfg.OutputDir, "transactions.csv")
	count, err := writeGeneratedTransactions(txnsPath, cfg)
	if err != nil {
		return err
	}

	a.Logger.Info().
		Int("merchants", len(generatedMerchants)).
		Int("transactions", count).
		Str("dir", cfg.OutputDir).
		Msg("sample data generated")
	fmt.Fprintf(os.Stdout, "Generated data:\nMerchants: %d\nTransactions: %d\n", len(generatedMerchants), count)
	return nil
}

func (a *App) resolveGenerate(opts GenerateOptions) (config.GenerateConfig, error) {
	cfg := a.Config.Generate
	if opts.OutputDir != "" {
		cfg.OutputDir = opts.OutputDir
	}
	if opts.StartDate != "" {
		ts, err := time.ParseInLocation("2006-01-02", opts.StartDate, time.UTC)
		if err != nil {
			return cfg, fmt.Errorf("parse start date: %w", err)
		}
		cfg.StartDate = ts
	}
	if opts.Days > 0 {
		cfg.Days = opts.Days
	}
	if opts.PerDay > 0 {
		cfg.PerDay = opts.PerDay
	}
	if opts.Seed != 0 {
		cfg.Seed = opts.Seed
	}
	if opts.BadRecords != nil {
		cfg.BadRecords = *opts.BadRecords
	}
	return cfg, nil
}

func writeGeneratedMerchants(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if err := writer.Write([]string{"merchant_id", "merchant_name", "category", "city", "state"}); err != nil {
		return err
	}
	for _, m := range generatedMerchants {
		if err := writer.Write(m); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeGeneratedTransactions(path string, cfg config.GenerateConfig) (int, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{"transaction_id", "merchant_id", "txn_ts_utc", "amount", "status", "payment_method"}
	if err := writer.Write(header); err != nil {
		return 0, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	start := cfg.StartDate.UTC()
	count := 0
	idCounter := 1

	for day := 0; day < cfg.Days; day++ {
		dayStart := start.AddDate(0, 0, day)
		for i := 0; i < cfg.PerDay; i++ {
			merchant := generatedMerchants[rng.Intn(len(generatedMerchants))]
			ts := dayStart.
				Add(time.Duration(rng.Intn(1440)) * time.Minute).
				Add(time.Duration(rng.Intn(60)) * time.Second)

			amount := 3.50 + rng.Float64()*(250.00-3.50)
			status := "APPROVED"
			if rng.Float64() >= 0.85 {
				status = "DECLINED"
			}

			record := []string{
				fmt.Sprintf("t_%06d", idCounter),
				merchant[0],
				ts.Format(time.RFC3339),
				fmt.Sprintf("%.2f", amount),
				status,
				generatedPaymentMethods[rng.Intn(len(generatedPaymentMethods))],
			}
			if err := writer.Write(record); err != nil {
				return count, err
			}
			idCounter++
			count++
		}
	}

	if cfg.BadRecords {
		bad := [][]string{
			{"t_bad_1", "m_9999", start.AddDate(0, 0, 9).Add(10 * time.Hour).Format(time.RFC3339), "10.00", "APPROVED", "CARD"},
			{"t_bad_2", "m_1001", start.AddDate(0, 0, 14).Add(12 * time.Hour).Format(time.RFC3339), "-5.00", "APPROVED", "CARD"},
		}
		for _, record := range bad {
			if err := writer.Write(record); err != nil {
				return count, err
			}
			count++
		}
	}

	writer.Flush()
	return count, writer.Error()
}
