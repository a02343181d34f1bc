// Package rfm aggregates cleaned transactions into per-customer
// recency/frequency/monetary summaries.
//
// A purchase occasion is a distinct calendar day: all invoice lines a
// customer generates on one UTC day collapse into a single occasion whose
// value is the day's summed total. Durations are whole days.
package rfm

import (
	"sort"
	"time"

	"github.com/sells-group/clv-cli/internal/txn"
)

// Summary holds the model inputs for one customer.
type Summary struct {
	CustomerID    int64
	Frequency     float64 // repeat purchase occasions after the first
	Recency       float64 // days between first and last occasion
	Age           float64 // days between first occasion and the observation cutoff (T)
	MonetaryValue float64 // mean occasion value over repeat occasions; 0 when Frequency is 0
}

const dayDuration = 24 * time.Hour

// Cutoff returns the observation cutoff for a cleaned transaction set: the
// latest timestamp plus one day. Computed once, globally, so every customer
// shares the same "now".
func Cutoff(lines []txn.Line) time.Time {
	var max time.Time
	for _, l := range lines {
		if l.Timestamp.After(max) {
			max = l.Timestamp
		}
	}
	return max.Add(dayDuration)
}

// Summarize groups lines by customer and reduces each group to a Summary
// against the given cutoff. A customer with a single occasion has
// Frequency 0, Recency 0, and MonetaryValue 0.
func Summarize(lines []txn.Line, cutoff time.Time) map[int64]Summary {
	// Per-customer occasion totals keyed by UTC day index.
	totals := make(map[int64]map[int64]float64)
	for _, l := range lines {
		days, ok := totals[l.CustomerID]
		if !ok {
			days = make(map[int64]float64)
			totals[l.CustomerID] = days
		}
		days[dayIndex(l.Timestamp)] += l.TotalPrice
	}

	cutoffDay := dayIndex(cutoff)

	summaries := make(map[int64]Summary, len(totals))
	for id, days := range totals {
		occasions := make([]int64, 0, len(days))
		for day := range days {
			occasions = append(occasions, day)
		}
		sort.Slice(occasions, func(i, j int) bool { return occasions[i] < occasions[j] })

		first := occasions[0]
		last := occasions[len(occasions)-1]
		frequency := len(occasions) - 1

		var monetary float64
		if frequency > 0 {
			var sum float64
			for _, day := range occasions[1:] {
				sum += days[day]
			}
			monetary = sum / float64(frequency)
		}

		summaries[id] = Summary{
			CustomerID:    id,
			Frequency:     float64(frequency),
			Recency:       float64(last - first),
			Age:           float64(cutoffDay - first),
			MonetaryValue: monetary,
		}
	}

	return summaries
}

// CustomerIDs returns the summary keys in ascending order for deterministic
// iteration.
func CustomerIDs(summaries map[int64]Summary) []int64 {
	ids := make([]int64, 0, len(summaries))
	for id := range summaries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// dayIndex truncates a timestamp to its UTC calendar day, counted from the
// Unix epoch.
func dayIndex(t time.Time) int64 {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).Unix() / 86400
}
