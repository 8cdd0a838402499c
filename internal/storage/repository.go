package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	createStageMerchantsSQL = `CREATE TEMP TABLE stg_merchants (
        merchant_id   VARCHAR(64)  NOT NULL,
        merchant_name VARCHAR(255) NOT NULL,
        category      VARCHAR(100),
        city          VARCHAR(100),
        state         VARCHAR(50)
    ) ON COMMIT DROP;`

	mergeMerchantsSQL = `INSERT INTO dim_merchants (
        merchant_id,
        merchant_name,
        category,
        city,
        state
    )
    SELECT merchant_id, merchant_name, category, city, state
    FROM stg_merchants
    ON CONFLICT (merchant_id) DO NOTHING;`

	createStageDailyMetricsSQL = `CREATE TEMP TABLE stg_daily_metrics (
        metric_date        DATE          NOT NULL,
        merchant_id        VARCHAR(64)   NOT NULL,
        txn_count          INTEGER       NOT NULL,
        approved_txn_count INTEGER       NOT NULL,
        declined_txn_count INTEGER       NOT NULL,
        gross_amount       NUMERIC(18,2) NOT NULL,
        approved_amount    NUMERIC(18,2) NOT NULL,
        approval_rate      NUMERIC(9,4)  NOT NULL,
        avg_ticket         NUMERIC(18,2) NOT NULL
    ) ON COMMIT DROP;`

	mergeDailyMetricsSQL = `INSERT INTO fact_daily_merchant_metrics (
        metric_date,
        merchant_id,
        txn_count,
        approved_txn_count,
        declined_txn_count,
        gross_amount,
        approved_amount,
        approval_rate,
        avg_ticket
    )
    SELECT metric_date, merchant_id, txn_count, approved_txn_count, declined_txn_count,
           gross_amount, approved_amount, approval_rate, avg_ticket
    FROM stg_daily_metrics
    ON CONFLICT (metric_date, merchant_id) DO UPDATE
    SET
        txn_count          = EXCLUDED.txn_count,
        approved_txn_count = EXCLUDED.approved_txn_count,
        declined_txn_count = EXCLUDED.declined_txn_count,
        gross_amount       = EXCLUDED.gross_amount,
        approved_amount    = EXCLUDED.approved_amount,
        approval_rate      = EXCLUDED.approval_rate,
        avg_ticket         = EXCLUDED.avg_ticket;`

	listExportRowsSQL = `SELECT
        f.metric_date,
        f.merchant_id,
        m.merchant_name,
        m.category,
        m.city,
        m.state,
        f.txn_count,
        f.approved_txn_count,
        f.declined_txn_count,
        f.gross_amount,
        f.approved_amount,
        f.approval_rate,
        f.avg_ticket
    FROM fact_daily_merchant_metrics f
    JOIN dim_merchants m
      ON f.merchant_id = m.merchant_id
    ORDER BY f.metric_date, m.merchant_name;`

	listRecentMetricsSQL = `SELECT
        metric_date,
        merchant_id,
        txn_count,
        approved_txn_count,
        declined_txn_count,
        gross_amount,
        approved_amount,
        approval_rate,
        avg_ticket,
        loaded_at_utc
    FROM fact_daily_merchant_metrics
    ORDER BY metric_date DESC, gross_amount DESC
    LIMIT $1;`

	countMerchantsSQL = `SELECT COUNT(*) FROM dim_merchants;`
	countFactRowsSQL  = `SELECT COUNT(*) FROM fact_daily_merchant_metrics;`

	pingSQL = `SELECT now(), current_database();`

	insertRunSQL = `INSERT INTO etl_runs (
        run_id,
        started_at_utc,
        finished_at_utc,
        status,
        error,
        txns_total,
        txns_after_dedupe,
        txns_valid,
        txns_rejected,
        merchants_loaded,
        fact_rows_upserted,
        rejects_by_reason
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12::jsonb
    );`
)

var (
	stageMerchantColumns = []string{"merchant_id", "merchant_name", "category", "city", "state"}

	stageMetricColumns = []string{
		"metric_date",
		"merchant_id",
		"txn_count",
		"approved_txn_count",
		"declined_txn_count",
		"gross_amount",
		"approved_amount",
		"approval_rate",
		"avg_ticket",
	}
)

// MerchantStore defines operations for the merchant dimension.
type MerchantStore interface {
	MergeMerchants(ctx context.Context, merchants []Merchant) (inserted int64, err error)
}

// MetricStore defines operations for the daily metrics fact table.
type MetricStore interface {
	MergeDailyMetrics(ctx context.Context, metrics []DailyMetric) (upserted int64, err error)
	ListExportRows(ctx context.Context) ([]MetricExportRow, error)
	ListRecentMetrics(ctx context.Context, limit int) ([]DailyMetric, error)
	TableCounts(ctx context.Context) (merchants, factRows int64, err error)
}

// RunStore defines operations for the run audit trail.
type RunStore interface {
	InsertRun(ctx context.Context, rec RunRecord) error
}

// Store aggregates access to the dimension, fact, and run-audit tables.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// MergeMerchants stages the given merchants and merges them into the
// dimension table inside one transaction. Existing rows are left untouched
// (the dimension is append-only); the count of newly inserted merchants is
// returned. The temp staging table drops with the transaction either way.
func (s *Store) MergeMerchants(ctx context.Context, merchants []Merchant) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("merge merchants: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, createStageMerchantsSQL); err != nil {
		return 0, fmt.Errorf("merge merchants: create staging: %w", err)
	}

	rows := make([][]any, 0, len(merchants))
	for _, m := range merchants {
		rows = append(rows, []any{
			m.MerchantID,
			m.MerchantName,
			nullIfEmpty(m.Category),
			nullIfEmpty(m.City),
			nullIfEmpty(m.State),
		})
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"stg_merchants"}, stageMerchantColumns, pgx.CopyFromRows(rows)); err != nil {
		return 0, fmt.Errorf("merge merchants: copy staging: %w", err)
	}

	cmdTag, err := tx.Exec(ctx, mergeMerchantsSQL)
	if err != nil {
		return 0, fmt.Errorf("merge merchants: merge: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("merge merchants: commit: %w", err)
	}
	return cmdTag.RowsAffected(), nil
}

// MergeDailyMetrics stages the aggregated rows and merges them into the fact
// table inside one transaction: insert where the (metric_date, merchant_id)
// key is absent, overwrite every non-key column where it exists. Either the
// whole batch commits or nothing does.
func (s *Store) MergeDailyMetrics(ctx context.Context, metrics []DailyMetric) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("merge daily metrics: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, createStageDailyMetricsSQL); err != nil {
		return 0, fmt.Errorf("merge daily metrics: create staging: %w", err)
	}

	rows := make([][]any, 0, len(metrics))
	for _, metric := range metrics {
		rows = append(rows, []any{
			metric.MetricDate,
			metric.MerchantID,
			metric.TxnCount,
			metric.ApprovedTxnCount,
			metric.DeclinedTxnCount,
			pgNumeric(metric.GrossAmount),
			pgNumeric(metric.ApprovedAmount),
			pgNumeric(metric.ApprovalRate),
			pgNumeric(metric.AvgTicket),
		})
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"stg_daily_metrics"}, stageMetricColumns, pgx.CopyFromRows(rows)); err != nil {
		return 0, fmt.Errorf("merge daily metrics: copy staging: %w", err)
	}

	cmdTag, err := tx.Exec(ctx, mergeDailyMetricsSQL)
	if err != nil {
		return 0, fmt.Errorf("merge daily metrics: merge: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("merge daily metrics: commit: %w", err)
	}
	return cmdTag.RowsAffected(), nil
}

// ListExportRows returns every fact row joined with its merchant attributes,
// ordered by metric date then merchant name.
func (s *Store) ListExportRows(ctx context.Context) ([]MetricExportRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listExportRowsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list export rows: %w", queryErr)
	}
	defer rows.Close()

	result := make([]MetricExportRow, 0)
	for rows.Next() {
		row, scanErr := scanExportRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		result = append(result, row)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return result, nil
}

// ListRecentMetrics lists fact rows ordered by most recent date, then gross
// amount descending.
func (s *Store) ListRecentMetrics(ctx context.Context, limit int) ([]DailyMetric, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentMetricsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent metrics: %w", queryErr)
	}
	defer rows.Close()

	metrics := make([]DailyMetric, 0, limit)
	for rows.Next() {
		var (
			metric   DailyMetric
			gross    pgtype.Numeric
			approved pgtype.Numeric
			rate     pgtype.Numeric
			avg      pgtype.Numeric
		)
		if err := rows.Scan(
			&metric.MetricDate,
			&metric.MerchantID,
			&metric.TxnCount,
			&metric.ApprovedTxnCount,
			&metric.DeclinedTxnCount,
			&gross,
			&approved,
			&rate,
			&avg,
			&metric.LoadedAt,
		); err != nil {
			return nil, err
		}

		var convErr error
		if metric.GrossAmount, convErr = numericToDecimal(gross); convErr != nil {
			return nil, fmt.Errorf("parse gross amount: %w", convErr)
		}
		if metric.ApprovedAmount, convErr = numericToDecimal(approved); convErr != nil {
			return nil, fmt.Errorf("parse approved amount: %w", convErr)
		}
		if metric.ApprovalRate, convErr = numericToDecimal(rate); convErr != nil {
			return nil, fmt.Errorf("parse approval rate: %w", convErr)
		}
		if metric.AvgTicket, convErr = numericToDecimal(avg); convErr != nil {
			return nil, fmt.Errorf("parse avg ticket: %w", convErr)
		}

		metrics = append(metrics, metric)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return metrics, nil
}

// TableCounts reports row counts for the dimension and fact tables.
func (s *Store) TableCounts(ctx context.Context) (int64, int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, 0, err
	}

	var merchants int64
	if scanErr := pool.QueryRow(ctx, countMerchantsSQL).Scan(&merchants); scanErr != nil {
		return 0, 0, fmt.Errorf("count merchants: %w", scanErr)
	}

	var factRows int64
	if scanErr := pool.QueryRow(ctx, countFactRowsSQL).Scan(&factRows); scanErr != nil {
		return 0, 0, fmt.Errorf("count fact rows: %w", scanErr)
	}
	return merchants, factRows, nil
}

// Ping verifies connectivity and reports server time and database name.
func (s *Store) Ping(ctx context.Context) (time.Time, string, error) {
	pool, err := s.getPool()
	if err != nil {
		return time.Time{}, "", err
	}

	var (
		now    time.Time
		dbName string
	)
	if scanErr := pool.QueryRow(ctx, pingSQL).Scan(&now, &dbName); scanErr != nil {
		return time.Time{}, "", fmt.Errorf("ping database: %w", scanErr)
	}
	return now, dbName, nil
}

// InsertRun appends a run record to the audit trail.
func (s *Store) InsertRun(ctx context.Context, rec RunRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	reasons := rec.RejectsByReason
	if reasons == nil {
		reasons = map[string]int{}
	}
	reasonsJSON, err := json.Marshal(reasons)
	if err != nil {
		return fmt.Errorf("insert run: marshal reject reasons: %w", err)
	}

	var errMsg any
	if rec.Error != nil {
		errMsg = *rec.Error
	}

	if _, execErr := pool.Exec(ctx, insertRunSQL,
		rec.RunID,
		rec.StartedAt,
		rec.FinishedAt,
		rec.Status,
		errMsg,
		rec.TxnsTotal,
		rec.TxnsAfterDedupe,
		rec.TxnsValid,
		rec.TxnsRejected,
		rec.MerchantsLoaded,
		rec.FactRowsUpserted,
		string(reasonsJSON),
	); execErr != nil {
		return fmt.Errorf("insert run: %w", execErr)
	}
	return nil
}

func scanExportRow(rows pgx.Rows) (MetricExportRow, error) {
	var (
		row      MetricExportRow
		category sql.NullString
		city     sql.NullString
		state    sql.NullString
		gross    pgtype.Numeric
		approved pgtype.Numeric
		rate     pgtype.Numeric
		avg      pgtype.Numeric
	)

	if err := rows.Scan(
		&row.MetricDate,
		&row.MerchantID,
		&row.MerchantName,
		&category,
		&city,
		&state,
		&row.TxnCount,
		&row.ApprovedTxnCount,
		&row.DeclinedTxnCount,
		&gross,
		&approved,
		&rate,
		&avg,
	); err != nil {
		return MetricExportRow{}, err
	}

	row.Category = category.String
	row.City = city.String
	row.State = state.String

	var err error
	if row.GrossAmount, err = numericToDecimal(gross); err != nil {
		return MetricExportRow{}, fmt.Errorf("parse gross amount: %w", err)
	}
	if row.ApprovedAmount, err = numericToDecimal(approved); err != nil {
		return MetricExportRow{}, fmt.Errorf("parse approved amount: %w", err)
	}
	if row.ApprovalRate, err = numericToDecimal(rate); err != nil {
		return MetricExportRow{}, fmt.Errorf("parse approval rate: %w", err)
	}
	if row.AvgTicket, err = numericToDecimal(avg); err != nil {
		return MetricExportRow{}, fmt.Errorf("parse avg ticket: %w", err)
	}

	return row, nil
}

// pgNumeric converts a decimal into the pgtype representation used for
// binary-protocol staging copies.
func pgNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func numericToDecimal(n pgtype.Numeric) (decimal.Decimal, error) {
	if !n.Valid {
		return decimal.Decimal{}, errors.New("null numeric")
	}
	if n.NaN {
		return decimal.Decimal{}, errors.New("numeric is NaN")
	}
	return decimal.NewFromBigInt(n.Int, n.Exp), nil
}

func nullIfEmpty(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

var (
	_ MerchantStore = (*Store)(nil)
	_ MetricStore   = (*Store)(nil)
	_ RunStore      = (*Store)(nil)
)
