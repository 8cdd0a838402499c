package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"merchant-metrics-pipeline/internal/pipeline"
	"merchant-metrics-pipeline/internal/report"
)

// Run executes one batch pipeline run: extract, validate, aggregate, load,
// then prints the run summary to stdout.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot run pipeline")
	}
	if closeStore != nil {
		defer closeStore()
	}

	source := a.newSource()
	runner := pipeline.NewRunner(a.Config, source, source, store, store, store, a.newNotifier(), a.Logger)

	a.Logger.Info().
		Str("merchants", a.Config.Input.MerchantsCSV).
		Str("transactions", a.Config.Input.TransactionsCSV).
		Msg("starting pipeline run")

	res, runErr := runner.Run(ctx)

	// Rejects are written even when the run later failed; whatever was
	// classified before the failure is still useful for triage.
	if path := a.Config.Report.RejectsCSV; path != "" && len(res.Rejects) > 0 {
		if err := writeRejectsCSV(path, res.Rejects); err != nil {
			a.Logger.Error().Err(err).Str("path", path).Msg("failed to write rejects file")
		} else {
			a.Logger.Info().Int("rows", len(res.Rejects)).Str("path", path).Msg("rejects written")
		}
	}

	if runErr != nil {
		a.Logger.Error().Err(runErr).Msg("pipeline run failed")
		return runErr
	}

	fmt.Fprintf(os.Stdout, "\n%s\nETL completed successfully.\n", report.RenderText(res.Summary()))
	return nil
}

func writeRejectsCSV(path string, rejects []pipeline.RejectedTransaction) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{"transaction_id", "merchant_id", "txn_ts_utc", "amount", "status", "reject_reason"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, rej := range rejects {
		record := []string{
			rej.Raw.TransactionID,
			rej.Raw.MerchantID,
			rej.Raw.TxnTimestamp,
			rej.Raw.Amount,
			rej.Raw.Status,
			rej.Reason,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
