package storage

import (
	"context"
	"fmt"
)

const (
	createDimMerchantsSQL = `CREATE TABLE IF NOT EXISTS dim_merchants (
        merchant_id    VARCHAR(64)  NOT NULL PRIMARY KEY,
        merchant_name  VARCHAR(255) NOT NULL,
        category       VARCHAR(100),
        city           VARCHAR(100),
        state          VARCHAR(50),
        created_at_utc TIMESTAMPTZ  NOT NULL DEFAULT now()
    );`

	createFactDailyMetricsSQL = `CREATE TABLE IF NOT EXISTS fact_daily_merchant_metrics (
        metric_date        DATE          NOT NULL,
        merchant_id        VARCHAR(64)   NOT NULL,
        txn_count          INTEGER       NOT NULL,
        approved_txn_count INTEGER       NOT NULL,
        declined_txn_count INTEGER       NOT NULL,
        gross_amount       NUMERIC(18,2) NOT NULL,
        approved_amount    NUMERIC(18,2) NOT NULL,
        approval_rate      NUMERIC(9,4)  NOT NULL,
        avg_ticket         NUMERIC(18,2) NOT NULL,
        loaded_at_utc      TIMESTAMPTZ   NOT NULL DEFAULT now(),
        CONSTRAINT pk_fact_daily PRIMARY KEY (metric_date, merchant_id),
        CONSTRAINT fk_fact_daily_merchants FOREIGN KEY (merchant_id)
            REFERENCES dim_merchants (merchant_id)
    );`

	createETLRunsSQL = `CREATE TABLE IF NOT EXISTS etl_runs (
        run_id             UUID        NOT NULL PRIMARY KEY,
        started_at_utc     TIMESTAMPTZ NOT NULL,
        finished_at_utc    TIMESTAMPTZ NOT NULL,
        status             VARCHAR(16) NOT NULL,
        error              TEXT,
        txns_total         BIGINT      NOT NULL,
        txns_after_dedupe  BIGINT      NOT NULL,
        txns_valid         BIGINT      NOT NULL,
        txns_rejected      BIGINT      NOT NULL,
        merchants_loaded   BIGINT      NOT NULL,
        fact_rows_upserted BIGINT      NOT NULL,
        rejects_by_reason  JSONB       NOT NULL DEFAULT '{}'::jsonb
    );`
)

// Migrate creates the dimension, fact, and run-audit tables if they do not
// already exist. Statements are idempotent, so re-running is safe.
func (s *Store) Migrate(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	for _, ddl := range []string{createDimMerchantsSQL, createFactDailyMetricsSQL, createETLRunsSQL} {
		if _, execErr := pool.Exec(ctx, ddl); execErr != nil {
			return fmt.Errorf("apply schema: %w", execErr)
		}
	}
	return nil
}
