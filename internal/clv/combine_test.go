package clv

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/clv-cli/internal/rfm"
)

func population() map[int64]rfm.Summary {
	return map[int64]rfm.Summary{
		1: {CustomerID: 1, Frequency: 3, Recency: 20, Age: 30, MonetaryValue: 45},
		2: {CustomerID: 2, Frequency: 0, Recency: 0, Age: 30},
		3: {CustomerID: 3, Frequency: 1, Recency: 5, Age: 12, MonetaryValue: 80},
	}
}

func TestCombineJoinsByCustomerID(t *testing.T) {
	t.Parallel()
	purchases := map[int64]float64{1: 2.5, 2: 0.4, 3: 1.0}
	values := map[int64]float64{1: 48, 3: 75}

	records, err := Combine(population(), purchases, values)
	require.NoError(t, err)
	require.Len(t, records, 3)

	byID := make(map[int64]PredictionRecord)
	for _, r := range records {
		byID[r.CustomerID] = r
	}

	assert.InDelta(t, 2.5*48, byID[1].PredictedCLV, 1e-9)
	assert.InDelta(t, 75, byID[3].PredictedMonetaryValue, 1e-9)
}

func TestCombineZeroRepeatCustomerGetsExactZero(t *testing.T) {
	t.Parallel()
	purchases := map[int64]float64{1: 2.5, 2: 0.4, 3: 1.0}
	values := map[int64]float64{1: 48, 3: 75}

	records, err := Combine(population(), purchases, values)
	require.NoError(t, err)

	for _, r := range records {
		if r.Frequency == 0 {
			assert.Zero(t, r.PredictedMonetaryValue)
			assert.Zero(t, r.PredictedCLV)
			// Still carries a purchase prediction.
			assert.InDelta(t, 0.4, r.PredictedPurchases, 1e-9)
		}
	}
}

func TestCombineMissingPurchasePrediction(t *testing.T) {
	t.Parallel()
	purchases := map[int64]float64{1: 2.5, 3: 1.0} // customer 2 missing
	values := map[int64]float64{1: 48, 3: 75}

	_, err := Combine(population(), purchases, values)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no purchase prediction")
}

func TestCombineMissingMonetaryPrediction(t *testing.T) {
	t.Parallel()
	purchases := map[int64]float64{1: 2.5, 2: 0.4, 3: 1.0}
	values := map[int64]float64{1: 48} // repeat customer 3 missing

	_, err := Combine(population(), purchases, values)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no monetary prediction")
}

func TestCombineSurplusMonetaryPrediction(t *testing.T) {
	t.Parallel()
	purchases := map[int64]float64{1: 2.5, 2: 0.4, 3: 1.0}
	values := map[int64]float64{1: 48, 3: 75, 99: 10} // 99 not in population

	_, err := Combine(population(), purchases, values)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "joined")
}

func TestRankDescendingWithIDTiebreak(t *testing.T) {
	t.Parallel()
	records := []PredictionRecord{
		{Summary: rfm.Summary{CustomerID: 5}, PredictedCLV: 10},
		{Summary: rfm.Summary{CustomerID: 2}, PredictedCLV: 10},
		{Summary: rfm.Summary{CustomerID: 9}, PredictedCLV: 40},
		{Summary: rfm.Summary{CustomerID: 1}, PredictedCLV: 0},
	}

	Rank(records)

	ids := make([]int64, len(records))
	for i, r := range records {
		ids[i] = r.CustomerID
	}
	assert.Equal(t, []int64{9, 2, 5, 1}, ids)
}

func TestTop(t *testing.T) {
	t.Parallel()
	records := []PredictionRecord{
		{Summary: rfm.Summary{CustomerID: 1}},
		{Summary: rfm.Summary{CustomerID: 2}},
		{Summary: rfm.Summary{CustomerID: 3}},
	}

	assert.Len(t, Top(records, 2), 2)
	assert.Len(t, Top(records, 0), 3)
	assert.Len(t, Top(records, 10), 3)
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()
	records := []PredictionRecord{
		{
			Summary:                rfm.Summary{CustomerID: 12747, Frequency: 3, Recency: 20, Age: 30, MonetaryValue: 45.5},
			PredictedPurchases:     2.1234,
			PredictedMonetaryValue: 48.75,
			PredictedCLV:           103.51,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "customer_id,frequency,recency,T,monetary_value,predicted_purchases,predicted_monetary_value,predicted_clv", lines[0])
	assert.Equal(t, "12747,3,20,30,45.50,2.1234,48.75,103.51", lines[1])
}
