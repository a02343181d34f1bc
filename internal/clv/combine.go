// Package clv merges the purchase-timing and monetary model outputs into
// per-customer lifetime value predictions and runs the end-to-end pipeline.
package clv

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/clv-cli/internal/rfm"
)

// PredictionRecord is a CustomerSummary enriched with model predictions.
type PredictionRecord struct {
	rfm.Summary
	PredictedPurchases     float64
	PredictedMonetaryValue float64
	PredictedCLV           float64
}

// Combine joins predictions onto the full customer population by customer id.
// purchases must cover every customer; values covers exactly the repeat
// customers (frequency > 0). Zero-repeat customers get a predicted monetary
// value of 0 exactly, by business rule, so their CLV is 0 rather than
// missing. Predicted CLV is predicted purchases times predicted value.
func Combine(summaries map[int64]rfm.Summary, purchases, values map[int64]float64) ([]PredictionRecord, error) {
	records := make([]PredictionRecord, 0, len(summaries))
	joined := 0

	for _, id := range rfm.CustomerIDs(summaries) {
		s := summaries[id]

		p, ok := purchases[id]
		if !ok {
			return nil, eris.Errorf("clv: no purchase prediction for customer %d", id)
		}

		var value float64
		if s.Frequency > 0 {
			v, ok := values[id]
			if !ok {
				return nil, eris.Errorf("clv: no monetary prediction for repeat customer %d", id)
			}
			value = v
			joined++
		}

		records = append(records, PredictionRecord{
			Summary:                s,
			PredictedPurchases:     p,
			PredictedMonetaryValue: value,
			PredictedCLV:           p * value,
		})
	}

	// Every monetary prediction must correspond to a repeat customer in the
	// population; a surplus means the subset join drifted.
	if joined != len(values) {
		return nil, eris.Errorf("clv: monetary predictions for %d customers, joined %d", len(values), joined)
	}

	return records, nil
}

// Rank sorts records by predicted CLV descending, ties broken by ascending
// customer id for determinism.
func Rank(records []PredictionRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].PredictedCLV != records[j].PredictedCLV {
			return records[i].PredictedCLV > records[j].PredictedCLV
		}
		return records[i].CustomerID < records[j].CustomerID
	})
}

// Top returns the first n ranked records without copying the backing array.
func Top(records []PredictionRecord, n int) []PredictionRecord {
	if n <= 0 || n > len(records) {
		return records
	}
	return records[:n]
}
