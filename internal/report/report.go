package report

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Summary carries the counters of a completed pipeline run for rendering
// and dispatch.
type Summary struct {
	Started          time.Time
	Finished         time.Time
	TxnsTotal        int64
	TxnsAfterDedupe  int64
	TxnsValid        int64
	TxnsRejected     int64
	MerchantsLoaded  int64
	DailyRows        int64
	FactRowsUpserted int64
	RejectsByReason  map[string]int
}

// RenderText renders the run banner printed after a batch run. Reject
// reasons are listed alphabetically so repeated runs render identically.
func RenderText(s Summary) string {
	b := strings.Builder{}
	b.WriteString("===== ETL RUN SUMMARY =====\n")
	writeCounter(&b, "Transactions total", s.TxnsTotal)
	writeCounter(&b, "After dedupe", s.TxnsAfterDedupe)
	writeCounter(&b, "Valid transactions", s.TxnsValid)
	writeCounter(&b, "Rejected transactions", s.TxnsRejected)

	reasons := make([]string, 0, len(s.RejectsByReason))
	for reason := range s.RejectsByReason {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		b.WriteString(fmt.Sprintf("  %-24s %d\n", reason+":", s.RejectsByReason[reason]))
	}

	writeCounter(&b, "Merchants loaded (upsert)", s.MerchantsLoaded)
	writeCounter(&b, "Daily metric rows", s.DailyRows)
	writeCounter(&b, "Fact rows upserted", s.FactRowsUpserted)
	b.WriteString("==========================\n")
	return b.String()
}

func writeCounter(b *strings.Builder, label string, n int64) {
	b.WriteString(fmt.Sprintf("%-26s %d\n", label+":", n))
}
