package pipeline

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"merchant-metrics-pipeline/internal/storage"
)

func cleanTxn(id, merchant string, ts time.Time, amount, status string) CleanTransaction {
	return CleanTransaction{
		TransactionID: id,
		MerchantID:    merchant,
		Timestamp:     ts,
		Amount:        decimal.RequireFromString(amount),
		Status:        status,
	}
}

func assertDecimal(t *testing.T, field string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("%s: expected %s, got %s", field, want, got)
	}
}

func TestAggregateSingleMerchantDay(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	txns := []CleanTransaction{
		cleanTxn("t_1", "M1", day.Add(9*time.Hour), "10", StatusApproved),
		cleanTxn("t_2", "M1", day.Add(11*time.Hour), "20", StatusApproved),
		cleanTxn("t_3", "M1", day.Add(14*time.Hour), "30", StatusApproved),
		cleanTxn("t_4", "M1", day.Add(20*time.Hour), "15", StatusDeclined),
	}

	metrics, err := Aggregate(txns)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(metrics) != 1 {
		t.Fatalf("expected 1 row, got %d", len(metrics))
	}

	m := metrics[0]
	if !m.MetricDate.Equal(day) {
		t.Fatalf("expected metric date %s, got %s", day, m.MetricDate)
	}
	if m.TxnCount != 4 || m.ApprovedTxnCount != 3 || m.DeclinedTxnCount != 1 {
		t.Fatalf("unexpected counts %d/%d/%d", m.TxnCount, m.ApprovedTxnCount, m.DeclinedTxnCount)
	}
	assertDecimal(t, "gross_amount", m.GrossAmount, "75")
	assertDecimal(t, "approved_amount", m.ApprovedAmount, "60")
	assertDecimal(t, "approval_rate", m.ApprovalRate, "0.75")
	assertDecimal(t, "avg_ticket", m.AvgTicket, "18.75")
}

func TestAggregateSplitsGroupsByUTCDayAndMerchant(t *testing.T) {
	txns := []CleanTransaction{
		cleanTxn("t_1", "m_1001", time.Date(2026, 1, 5, 23, 59, 59, 0, time.UTC), "10.00", StatusApproved),
		cleanTxn("t_2", "m_1001", time.Date(2026, 1, 6, 0, 0, 1, 0, time.UTC), "20.00", StatusApproved),
		cleanTxn("t_3", "m_1002", time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC), "30.00", StatusDeclined),
	}

	metrics, err := Aggregate(txns)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(metrics) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(metrics))
	}

	// Sorted by metric date, then merchant id.
	if metrics[0].MerchantID != "m_1001" || metrics[0].MetricDate.Day() != 5 {
		t.Fatalf("unexpected first row %+v", metrics[0])
	}
	if metrics[1].MerchantID != "m_1002" || metrics[1].MetricDate.Day() != 5 {
		t.Fatalf("unexpected second row %+v", metrics[1])
	}
	if metrics[2].MerchantID != "m_1001" || metrics[2].MetricDate.Day() != 6 {
		t.Fatalf("unexpected third row %+v", metrics[2])
	}
}

func TestAggregateOrderInsensitive(t *testing.T) {
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	txns := []CleanTransaction{
		cleanTxn("t_1", "m_1001", day.Add(1*time.Hour), "10.25", StatusApproved),
		cleanTxn("t_2", "m_1002", day.Add(2*time.Hour), "5.75", StatusDeclined),
		cleanTxn("t_3", "m_1001", day.Add(3*time.Hour), "4.00", StatusDeclined),
		cleanTxn("t_4", "m_1002", day.Add(4*time.Hour), "9.50", StatusApproved),
	}
	reversed := []CleanTransaction{txns[3], txns[2], txns[1], txns[0]}

	first, err := Aggregate(txns)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	second, err := Aggregate(reversed)
	if err != nil {
		t.Fatalf("Aggregate reversed: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("row counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		assertMetricEqual(t, first[i], second[i])
	}
}

func assertMetricEqual(t *testing.T, a, b storage.DailyMetric) {
	t.Helper()
	if !a.MetricDate.Equal(b.MetricDate) || a.MerchantID != b.MerchantID {
		t.Fatalf("row keys differ: %s/%s vs %s/%s", a.MetricDate, a.MerchantID, b.MetricDate, b.MerchantID)
	}
	if a.TxnCount != b.TxnCount || a.ApprovedTxnCount != b.ApprovedTxnCount || a.DeclinedTxnCount != b.DeclinedTxnCount {
		t.Fatalf("counts differ for %s: %+v vs %+v", a.MerchantID, a, b)
	}
	for _, pair := range []struct {
		name string
		x, y decimal.Decimal
	}{
		{"gross_amount", a.GrossAmount, b.GrossAmount},
		{"approved_amount", a.ApprovedAmount, b.ApprovedAmount},
		{"approval_rate", a.ApprovalRate, b.ApprovalRate},
		{"avg_ticket", a.AvgTicket, b.AvgTicket},
	} {
		if !pair.x.Equal(pair.y) {
			t.Fatalf("%s differs for %s: %s vs %s", pair.name, a.MerchantID, pair.x, pair.y)
		}
	}
}

func TestAggregateRoundsHalfToEven(t *testing.T) {
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	// avg_ticket 10.01 / 2 = 5.005 rounds to 5.00, not 5.01.
	txns := []CleanTransaction{
		cleanTxn("t_1", "m_1001", day, "5.00", StatusApproved),
		cleanTxn("t_2", "m_1001", day, "5.01", StatusDeclined),
	}

	metrics, err := Aggregate(txns)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	assertDecimal(t, "avg_ticket", metrics[0].AvgTicket, "5.00")
	assertDecimal(t, "approval_rate", metrics[0].ApprovalRate, "0.5")
}

func TestAggregateApprovalRatePrecision(t *testing.T) {
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	txns := []CleanTransaction{
		cleanTxn("t_1", "m_1001", day, "1.00", StatusApproved),
		cleanTxn("t_2", "m_1001", day, "1.00", StatusDeclined),
		cleanTxn("t_3", "m_1001", day, "1.00", StatusDeclined),
	}

	metrics, err := Aggregate(txns)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	assertDecimal(t, "approval_rate", metrics[0].ApprovalRate, "0.3333")
}

func TestAggregateEmptyInput(t *testing.T) {
	metrics, err := Aggregate(nil)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(metrics) != 0 {
		t.Fatalf("expected no rows, got %d", len(metrics))
	}
}

func TestAggregateNormalisesZoneToUTCDay(t *testing.T) {
	// 23:30 -03:00 is 02:30 UTC the next day.
	zone := time.FixedZone("BRT", -3*60*60)
	txns := []CleanTransaction{
		cleanTxn("t_1", "m_1001", time.Date(2026, 1, 5, 23, 30, 0, 0, zone), "10.00", StatusApproved),
	}

	metrics, err := Aggregate(txns)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	want := time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)
	if !metrics[0].MetricDate.Equal(want) {
		t.Fatalf("expected metric date %s, got %s", want, metrics[0].MetricDate)
	}
}
