package pipeline

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"merchant-metrics-pipeline/internal/storage"
)

type metricKey struct {
	date       string
	merchantID string
}

type metricAccumulator struct {
	date           time.Time
	merchantID     string
	txnCount       int64
	approvedCount  int64
	declinedCount  int64
	grossAmount    decimal.Decimal
	approvedAmount decimal.Decimal
}

// Aggregate groups accepted transactions by merchant and UTC calendar day
// and computes one KPI row per group. Identical input batches yield
// identical output regardless of input order: rows are sorted by metric
// date, then merchant id.
func Aggregate(txns []CleanTransaction) ([]storage.DailyMetric, error) {
	groups := make(map[metricKey]*metricAccumulator)

	for _, txn := range txns {
		ts := txn.Timestamp.UTC()
		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		key := metricKey{date: day.Format("2006-01-02"), merchantID: txn.MerchantID}

		acc, ok := groups[key]
		if !ok {
			acc = &metricAccumulator{date: day, merchantID: txn.MerchantID}
			groups[key] = acc
		}

		acc.txnCount++
		acc.grossAmount = acc.grossAmount.Add(txn.Amount)
		if txn.Status == StatusApproved {
			acc.approvedCount++
			acc.approvedAmount = acc.approvedAmount.Add(txn.Amount)
		} else {
			acc.declinedCount++
		}
	}

	metrics := make([]storage.DailyMetric, 0, len(groups))
	for _, acc := range groups {
		rate := decimal.Zero
		avgTicket := decimal.Zero
		if acc.txnCount > 0 {
			count := decimal.NewFromInt(acc.txnCount)
			rate = decimal.NewFromInt(acc.approvedCount).Div(count).RoundBank(4)
			avgTicket = acc.grossAmount.Div(count).RoundBank(2)
		}

		metric := storage.DailyMetric{
			MetricDate:       acc.date,
			MerchantID:       acc.merchantID,
			TxnCount:         acc.txnCount,
			ApprovedTxnCount: acc.approvedCount,
			DeclinedTxnCount: acc.declinedCount,
			GrossAmount:      acc.grossAmount,
			ApprovedAmount:   acc.approvedAmount,
			ApprovalRate:     rate,
			AvgTicket:        avgTicket,
		}
		if err := checkMetric(metric); err != nil {
			return nil, err
		}
		metrics = append(metrics, metric)
	}

	sort.Slice(metrics, func(i, j int) bool {
		if !metrics[i].MetricDate.Equal(metrics[j].MetricDate) {
			return metrics[i].MetricDate.Before(metrics[j].MetricDate)
		}
		return metrics[i].MerchantID < metrics[j].MerchantID
	})

	return metrics, nil
}

// checkMetric re-asserts the arithmetic relationships every aggregated row
// must satisfy. Validated input cannot break them, so any violation is a
// defect and aborts the run.
func checkMetric(m storage.DailyMetric) error {
	if m.ApprovedTxnCount+m.DeclinedTxnCount != m.TxnCount {
		return fmt.Errorf("aggregate %s/%s: approved %d + declined %d != total %d",
			m.MerchantID, m.MetricDate.Format("2006-01-02"), m.ApprovedTxnCount, m.DeclinedTxnCount, m.TxnCount)
	}
	if m.TxnCount < 0 || m.ApprovedTxnCount < 0 || m.DeclinedTxnCount < 0 {
		return fmt.Errorf("aggregate %s/%s: negative count", m.MerchantID, m.MetricDate.Format("2006-01-02"))
	}
	if m.GrossAmount.IsNegative() || m.ApprovedAmount.IsNegative() {
		return fmt.Errorf("aggregate %s/%s: negative amount", m.MerchantID, m.MetricDate.Format("2006-01-02"))
	}
	if m.ApprovedAmount.GreaterThan(m.GrossAmount) {
		return fmt.Errorf("aggregate %s/%s: approved amount %s exceeds gross %s",
			m.MerchantID, m.MetricDate.Format("2006-01-02"), m.ApprovedAmount, m.GrossAmount)
	}
	return nil
}
