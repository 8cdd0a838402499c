package pipeline

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"merchant-metrics-pipeline/internal/extract"
)

var testNow = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

func testValidator() *Validator {
	v := NewValidator(Rules{
		EarliestTimestamp: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		FutureGrace:       24 * time.Hour,
	}, zerolog.Nop())
	v.now = func() time.Time { return testNow }
	return v
}

func rawTxn(id, merchant, ts, amount, status string) extract.RawTransaction {
	return extract.RawTransaction{
		TransactionID: id,
		MerchantID:    merchant,
		TxnTimestamp:  ts,
		Amount:        amount,
		Status:        status,
	}
}

func TestValidateAcceptsWellFormedTransaction(t *testing.T) {
	known := map[string]struct{}{"m_1001": {}}
	raws := []extract.RawTransaction{
		rawTxn("t_000001", "m_1001", "2026-01-05T09:30:00Z", "12.50", "APPROVED"),
	}

	accepted, rejected := testValidator().Validate(raws, known)
	if len(rejected) != 0 {
		t.Fatalf("expected no rejects, got %+v", rejected)
	}
	if len(accepted) != 1 {
		t.Fatalf("expected 1 accepted, got %d", len(accepted))
	}

	txn := accepted[0]
	if !txn.Amount.Equal(decimal.RequireFromString("12.50")) {
		t.Fatalf("expected amount 12.50, got %s", txn.Amount)
	}
	want := time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)
	if !txn.Timestamp.Equal(want) {
		t.Fatalf("expected timestamp %s, got %s", want, txn.Timestamp)
	}
	if txn.Status != StatusApproved {
		t.Fatalf("expected status APPROVED, got %q", txn.Status)
	}
}

func TestValidateZeroAmountAccepted(t *testing.T) {
	known := map[string]struct{}{"m_1001": {}}
	raws := []extract.RawTransaction{
		rawTxn("t_000001", "m_1001", "2026-01-05T09:30:00Z", "0.00", "DECLINED"),
	}

	accepted, rejected := testValidator().Validate(raws, known)
	if len(rejected) != 0 {
		t.Fatalf("zero amount must be accepted, got reject %+v", rejected)
	}
	if !accepted[0].Amount.IsZero() {
		t.Fatalf("expected zero amount, got %s", accepted[0].Amount)
	}
}

func TestValidateRejectReasons(t *testing.T) {
	known := map[string]struct{}{"m_1001": {}}

	cases := []struct {
		name   string
		raw    extract.RawTransaction
		reason string
	}{
		{"unrecognised status", rawTxn("t_1", "m_1001", "2026-01-05T09:30:00Z", "10.00", "PENDING"), ReasonInvalidStatus},
		{"lowercase status", rawTxn("t_2", "m_1001", "2026-01-05T09:30:00Z", "10.00", "approved"), ReasonInvalidStatus},
		{"empty status", rawTxn("t_3", "m_1001", "2026-01-05T09:30:00Z", "10.00", ""), ReasonInvalidStatus},
		{"unparsable amount", rawTxn("t_4", "m_1001", "2026-01-05T09:30:00Z", "abc", "APPROVED"), ReasonInvalidAmount},
		{"empty amount", rawTxn("t_5", "m_1001", "2026-01-05T09:30:00Z", "", "APPROVED"), ReasonInvalidAmount},
		{"negative amount", rawTxn("t_6", "m_1001", "2026-01-05T09:30:00Z", "-5.00", "APPROVED"), ReasonNegativeAmount},
		{"unparsable timestamp", rawTxn("t_7", "m_1001", "not-a-time", "10.00", "APPROVED"), ReasonInvalidTimestamp},
		{"timestamp before window", rawTxn("t_8", "m_1001", "1999-12-31T23:59:59Z", "10.00", "APPROVED"), ReasonInvalidTimestamp},
		{"timestamp past grace", rawTxn("t_9", "m_1001", "2026-02-03T00:00:00Z", "10.00", "APPROVED"), ReasonInvalidTimestamp},
		{"unknown merchant", rawTxn("t_10", "m_9999", "2026-01-05T09:30:00Z", "10.00", "APPROVED"), ReasonUnknownMerchant},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			accepted, rejected := testValidator().Validate([]extract.RawTransaction{tc.raw}, known)
			if len(accepted) != 0 {
				t.Fatalf("expected reject, got accepted %+v", accepted)
			}
			if len(rejected) != 1 {
				t.Fatalf("expected 1 reject, got %d", len(rejected))
			}
			if rejected[0].Reason != tc.reason {
				t.Fatalf("expected reason %q, got %q", tc.reason, rejected[0].Reason)
			}
		})
	}
}

func TestValidateFirstFailingRuleWins(t *testing.T) {
	// Violates status, amount, and merchant rules at once; the status rule
	// runs first and supplies the reason.
	raws := []extract.RawTransaction{
		rawTxn("t_1", "m_9999", "garbage", "-1.00", "MAYBE"),
	}

	_, rejected := testValidator().Validate(raws, map[string]struct{}{})
	if len(rejected) != 1 || rejected[0].Reason != ReasonInvalidStatus {
		t.Fatalf("expected invalid_status, got %+v", rejected)
	}
}

func TestValidateTimestampFormats(t *testing.T) {
	known := map[string]struct{}{"m_1001": {}}

	cases := []struct {
		in   string
		want time.Time
	}{
		{"2026-01-05T09:30:00Z", time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)},
		{"2026-01-05T09:30:00.250Z", time.Date(2026, 1, 5, 9, 30, 0, 250_000_000, time.UTC)},
		{"2026-01-05T09:30:00+02:00", time.Date(2026, 1, 5, 7, 30, 0, 0, time.UTC)},
		{"2026-01-05T09:30:00", time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)},
		{"2026-01-05 09:30:00", time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)},
		{"2026-01-05", time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)},
	}

	for _, tc := range cases {
		accepted, rejected := testValidator().Validate([]extract.RawTransaction{
			rawTxn("t_1", "m_1001", tc.in, "10.00", "APPROVED"),
		}, known)
		if len(rejected) != 0 {
			t.Fatalf("timestamp %q: unexpected reject %+v", tc.in, rejected)
		}
		if !accepted[0].Timestamp.Equal(tc.want) {
			t.Fatalf("timestamp %q: expected %s, got %s", tc.in, tc.want, accepted[0].Timestamp)
		}
	}
}

func TestValidateTimestampWithinGraceAccepted(t *testing.T) {
	known := map[string]struct{}{"m_1001": {}}
	// 12h ahead of the fixed clock, inside the 24h grace window.
	raws := []extract.RawTransaction{
		rawTxn("t_1", "m_1001", "2026-02-01T12:00:00Z", "10.00", "APPROVED"),
	}

	accepted, rejected := testValidator().Validate(raws, known)
	if len(rejected) != 0 {
		t.Fatalf("expected accept within grace, got %+v", rejected)
	}
	if len(accepted) != 1 {
		t.Fatalf("expected 1 accepted, got %d", len(accepted))
	}
}

func TestMerchantIDSetSkipsEmptyIDs(t *testing.T) {
	ids := MerchantIDSet([]extract.MerchantRow{
		{MerchantID: "m_1001", MerchantName: "Sunrise Coffee"},
		{MerchantID: "", MerchantName: "Nameless"},
		{MerchantID: "m_1002", MerchantName: "Ocean Threads"},
	})

	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %d", len(ids))
	}
	if _, ok := ids[""]; ok {
		t.Fatal("empty merchant id must not be in the reference set")
	}
}
