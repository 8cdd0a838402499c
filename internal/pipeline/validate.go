package pipeline

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"merchant-metrics-pipeline/internal/extract"
)

// Layouts accepted for transaction timestamps. Layouts without a zone are
// interpreted as UTC.
var timestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Rules bound the window a transaction timestamp may fall in. A zero
// EarliestTimestamp disables the lower bound; FutureGrace extends the upper
// bound past the wall clock to tolerate producer skew.
type Rules struct {
	EarliestTimestamp time.Time
	FutureGrace       time.Duration
}

// Validator classifies raw transactions as accepted or rejected against the
// merchant dimension. It has no side effects beyond debug logging.
type Validator struct {
	rules  Rules
	logger zerolog.Logger
	now    func() time.Time
}

// NewValidator constructs a validator.
func NewValidator(rules Rules, logger zerolog.Logger) *Validator {
	return &Validator{
		rules:  rules,
		logger: logger.With().Str("component", "validator").Logger(),
		now:    time.Now,
	}
}

// Validate splits the batch into accepted transactions and rejects. Rules
// run in a fixed order (status, amount syntax, amount sign, timestamp,
// merchant reference) and the first failure supplies the reject reason.
func (v *Validator) Validate(raws []extract.RawTransaction, knownMerchants map[string]struct{}) ([]CleanTransaction, []RejectedTransaction) {
	accepted := make([]CleanTransaction, 0, len(raws))
	rejected := make([]RejectedTransaction, 0)

	latest := v.now().UTC().Add(v.rules.FutureGrace)

	for _, raw := range raws {
		clean, reason := v.check(raw, knownMerchants, latest)
		if reason != "" {
			v.logger.Debug().
				Str("transaction_id", raw.TransactionID).
				Str("reason", reason).
				Int("line", raw.Line).
				Msg("transaction rejected")
			rejected = append(rejected, RejectedTransaction{Raw: raw, Reason: reason})
			continue
		}
		accepted = append(accepted, clean)
	}
	return accepted, rejected
}

func (v *Validator) check(raw extract.RawTransaction, known map[string]struct{}, latest time.Time) (CleanTransaction, string) {
	if raw.Status != StatusApproved && raw.Status != StatusDeclined {
		return CleanTransaction{}, ReasonInvalidStatus
	}

	amount, err := decimal.NewFromString(raw.Amount)
	if err != nil {
		return CleanTransaction{}, ReasonInvalidAmount
	}
	if amount.IsNegative() {
		return CleanTransaction{}, ReasonNegativeAmount
	}

	ts, err := parseTimestamp(raw.TxnTimestamp)
	if err != nil {
		return CleanTransaction{}, ReasonInvalidTimestamp
	}
	if ts.Before(v.rules.EarliestTimestamp) || ts.After(latest) {
		return CleanTransaction{}, ReasonInvalidTimestamp
	}

	if _, ok := known[raw.MerchantID]; !ok {
		return CleanTransaction{}, ReasonUnknownMerchant
	}

	return CleanTransaction{
		TransactionID: raw.TransactionID,
		MerchantID:    raw.MerchantID,
		Timestamp:     ts,
		Amount:        amount,
		Status:        raw.Status,
	}, ""
}

func parseTimestamp(value string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err == nil {
		return ts.UTC(), nil
	}
	for _, layout := range timestampLayouts {
		ts, layoutErr := time.ParseInLocation(layout, value, time.UTC)
		if layoutErr == nil {
			return ts, nil
		}
	}
	return time.Time{}, err
}

// MerchantIDSet collects the non-empty merchant ids from the dimension
// input, the reference set for unknown_merchant checks.
func MerchantIDSet(rows []extract.MerchantRow) map[string]struct{} {
	ids := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if row.MerchantID == "" {
			continue
		}
		ids[row.MerchantID] = struct{}{}
	}
	return ids
}
