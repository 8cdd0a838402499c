package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Merchant is a row of the dim_merchants dimension table. Rows are
// append-only reference data: once created they are never updated.
type Merchant struct {
	MerchantID   string
	MerchantName string
	Category     string
	City         string
	State        string
	CreatedAt    time.Time
}

// DailyMetric is a row of the fact_daily_merchant_metrics table, one per
// merchant per UTC calendar day.
type DailyMetric struct {
	MetricDate       time.Time
	MerchantID       string
	TxnCount         int64
	ApprovedTxnCount int64
	DeclinedTxnCount int64
	GrossAmount      decimal.Decimal
	ApprovedAmount   decimal.Decimal
	ApprovalRate     decimal.Decimal
	AvgTicket        decimal.Decimal
	LoadedAt         time.Time
}

// MetricExportRow is a fact row denormalised with its merchant attributes,
// shaped for the flat-file export.
type MetricExportRow struct {
	DailyMetric
	MerchantName string
	Category     string
	City         string
	State        string
}

// RunRecord captures one pipeline run for the etl_runs audit table.
type RunRecord struct {
	RunID            uuid.UUID
	StartedAt        time.Time
	FinishedAt       time.Time
	Status           string
	Error            *string
	TxnsTotal        int64
	TxnsAfterDedupe  int64
	TxnsValid        int64
	TxnsRejected     int64
	MerchantsLoaded  int64
	FactRowsUpserted int64
	RejectsByReason  map[string]int
}

// Run statuses recorded in etl_runs.
const (
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)
