package pipeline

import (
	"time"

	"github.com/shopspring/decimal"

	"merchant-metrics-pipeline/internal/extract"
)

// Reject reasons recorded for transactions that fail validation.
const (
	ReasonInvalidStatus    = "invalid_status"
	ReasonInvalidAmount    = "invalid_amount"
	ReasonNegativeAmount   = "negative_amount"
	ReasonInvalidTimestamp = "invalid_timestamp"
	ReasonUnknownMerchant  = "unknown_merchant"
)

// Transaction statuses accepted by validation.
const (
	StatusApproved = "APPROVED"
	StatusDeclined = "DECLINED"
)

// CleanTransaction is a transaction that passed every validation rule.
// Timestamp is normalised to UTC.
type CleanTransaction struct {
	TransactionID string
	MerchantID    string
	Timestamp     time.Time
	Amount        decimal.Decimal
	Status        string
}

// RejectedTransaction pairs a raw source record with the first rule it
// violated.
type RejectedTransaction struct {
	Raw    extract.RawTransaction
	Reason string
}

// RunStats captures the row counts produced by one pipeline run.
type RunStats struct {
	TxnsTotal        int64
	TxnsAfterDedupe  int64
	TxnsValid        int64
	TxnsRejected     int64
	MerchantsLoaded  int64
	DailyRows        int64
	FactRowsUpserted int64
	RejectsByReason  map[string]int
}
