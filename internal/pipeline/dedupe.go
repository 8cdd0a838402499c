package pipeline

import "merchant-metrics-pipeline/internal/extract"

// Dedupe collapses duplicate transaction ids, keeping the first occurrence
// in input order. Collapsed duplicates are not rejections and carry no
// reason; they simply disappear from the batch.
func Dedupe(rows []extract.RawTransaction) []extract.RawTransaction {
	seen := make(map[string]struct{}, len(rows))
	out := make([]extract.RawTransaction, 0, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.TransactionID]; ok {
			continue
		}
		seen[row.TransactionID] = struct{}{}
		out = append(out, row)
	}
	return out
}
