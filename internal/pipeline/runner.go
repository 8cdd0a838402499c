package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"merchant-metrics-pipeline/internal/config"
	"merchant-metrics-pipeline/internal/extract"
	"merchant-metrics-pipeline/internal/report"
	"merchant-metrics-pipeline/internal/storage"
)

// Runner executes one batch run end to end: extract, dedupe, validate,
// aggregate, then the two staged merges. Every run is recorded in the
// audit trail, succeeded or failed.
type Runner struct {
	merchantSource extract.MerchantSource
	txnSource      extract.TransactionSource
	validator      *Validator
	merchantStore  storage.MerchantStore
	metricStore    storage.MetricStore
	runStore       storage.RunStore
	notifier       report.Notifier
	logger         zerolog.Logger
	now            func() time.Time
}

// NewRunner constructs the batch runner. notifier and runStore may be nil
// when summary push or the audit trail is disabled.
func NewRunner(cfg *config.Config, merchantSource extract.MerchantSource, txnSource extract.TransactionSource, merchantStore storage.MerchantStore, metricStore storage.MetricStore, runStore storage.RunStore, notifier report.Notifier, logger zerolog.Logger) *Runner {
	rules := Rules{
		EarliestTimestamp: cfg.Validation.EarliestTimestamp,
		FutureGrace:       cfg.Validation.FutureGrace,
	}

	return &Runner{
		merchantSource: merchantSource,
		txnSource:      txnSource,
		validator:      NewValidator(rules, logger),
		merchantStore:  merchantStore,
		metricStore:    metricStore,
		runStore:       runStore,
		notifier:       notifier,
		logger:         logger.With().Str("component", "runner").Logger(),
		now:            time.Now,
	}
}

// Result captures everything a run produced for reporting.
type Result struct {
	Stats    RunStats
	Rejects  []RejectedTransaction
	Started  time.Time
	Finished time.Time
}

// Summary converts the result into its reporting form.
func (r Result) Summary() report.Summary {
	return report.Summary{
		Started:          r.Started,
		Finished:         r.Finished,
		TxnsTotal:        r.Stats.TxnsTotal,
		TxnsAfterDedupe:  r.Stats.TxnsAfterDedupe,
		TxnsValid:        r.Stats.TxnsValid,
		TxnsRejected:     r.Stats.TxnsRejected,
		MerchantsLoaded:  r.Stats.MerchantsLoaded,
		DailyRows:        r.Stats.DailyRows,
		FactRowsUpserted: r.Stats.FactRowsUpserted,
		RejectsByReason:  r.Stats.RejectsByReason,
	}
}

// Run executes the full batch. Audit-trail and summary-dispatch failures
// are logged but never fail the run; every other stage error aborts it.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	res := Result{
		Started: r.now().UTC(),
		Stats:   RunStats{RejectsByReason: map[string]int{}},
	}

	err := r.execute(ctx, &res)
	res.Finished = r.now().UTC()

	r.recordRun(ctx, res, err)

	if err != nil {
		return res, err
	}

	if r.notifier != nil {
		if notifyErr := r.notifier.Notify(ctx, res.Summary()); notifyErr != nil {
			r.logger.Error().Err(notifyErr).Msg("failed to dispatch run summary")
		}
	}
	return res, nil
}

func (r *Runner) execute(ctx context.Context, res *Result) error {
	merchants, err := r.merchantSource.ReadMerchants(ctx)
	if err != nil {
		return fmt.Errorf("extract merchants: %w", err)
	}

	raws, err := r.txnSource.ReadTransactions(ctx)
	if err != nil {
		return fmt.Errorf("extract transactions: %w", err)
	}

	res.Stats.TxnsTotal = int64(len(raws))
	r.logger.Info().Int("merchants", len(merchants)).Int("transactions", len(raws)).Msg("inputs read")

	deduped := Dedupe(raws)
	res.Stats.TxnsAfterDedupe = int64(len(deduped))

	accepted, rejects := r.validator.Validate(deduped, MerchantIDSet(merchants))
	res.Rejects = rejects
	res.Stats.TxnsValid = int64(len(accepted))
	res.Stats.TxnsRejected = int64(len(rejects))
	for _, rej := range rejects {
		res.Stats.RejectsByReason[rej.Reason]++
	}
	r.logger.Info().
		Int64("valid", res.Stats.TxnsValid).
		Int64("rejected", res.Stats.TxnsRejected).
		Int64("duplicates", res.Stats.TxnsTotal-res.Stats.TxnsAfterDedupe).
		Msg("transactions validated")

	metrics, err := Aggregate(accepted)
	if err != nil {
		return err
	}
	res.Stats.DailyRows = int64(len(metrics))
	r.logger.Info().Int("rows", len(metrics)).Msg("daily metrics aggregated")

	inserted, err := r.merchantStore.MergeMerchants(ctx, toStorageMerchants(merchants))
	if err != nil {
		return fmt.Errorf("load merchants: %w", err)
	}
	res.Stats.MerchantsLoaded = int64(len(merchants))
	r.logger.Info().Int("staged", len(merchants)).Int64("inserted", inserted).Msg("merchant dimension merged")

	upserted, err := r.metricStore.MergeDailyMetrics(ctx, metrics)
	if err != nil {
		return fmt.Errorf("load daily metrics: %w", err)
	}
	res.Stats.FactRowsUpserted = upserted
	r.logger.Info().Int64("upserted", upserted).Msg("fact rows merged")

	return nil
}

func (r *Runner) recordRun(ctx context.Context, res Result, runErr error) {
	if r.runStore == nil {
		return
	}

	rec := storage.RunRecord{
		RunID:            uuid.New(),
		StartedAt:        res.Started,
		FinishedAt:       res.Finished,
		Status:           storage.RunSucceeded,
		TxnsTotal:        res.Stats.TxnsTotal,
		TxnsAfterDedupe:  res.Stats.TxnsAfterDedupe,
		TxnsValid:        res.Stats.TxnsValid,
		TxnsRejected:     res.Stats.TxnsRejected,
		MerchantsLoaded:  res.Stats.MerchantsLoaded,
		FactRowsUpserted: res.Stats.FactRowsUpserted,
		RejectsByReason:  res.Stats.RejectsByReason,
	}
	if runErr != nil {
		rec.Status = storage.RunFailed
		msg := runErr.Error()
		rec.Error = &msg
	}

	if err := r.runStore.InsertRun(ctx, rec); err != nil {
		r.logger.Error().Err(err).Str("run_id", rec.RunID.String()).Msg("failed to record run")
	}
}

func toStorageMerchants(rows []extract.MerchantRow) []storage.Merchant {
	merchants := make([]storage.Merchant, 0, len(rows))
	for _, row := range rows {
		merchants = append(merchants, storage.Merchant{
			MerchantID:   row.MerchantID,
			MerchantName: row.MerchantName,
			Category:     row.Category,
			City:         row.City,
			State:        row.State,
		})
	}
	return merchants
}
