package clv

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/clv-cli/internal/btyd"
	"github.com/sells-group/clv-cli/internal/rfm"
	"github.com/sells-group/clv-cli/internal/txn"
)

// daysPerMonth converts the prediction horizon from months to days.
const daysPerMonth = 30.4375

// Params configures a pipeline run.
type Params struct {
	HorizonMonths float64
	BGNBD         btyd.Options
	GammaGamma    btyd.Options
}

// HorizonDays returns the prediction window length in days.
func (p Params) HorizonDays() float64 {
	return p.HorizonMonths * daysPerMonth
}

// Result holds everything a run produces: cleaning stats, the shared
// observation cutoff, both fitted models, and ranked prediction records.
type Result struct {
	Stats    txn.Stats
	Cutoff   time.Time
	Purchase *btyd.BGNBD
	Monetary *btyd.GammaGamma
	Records  []PredictionRecord
}

// Run executes the batch pipeline on raw rows (header first): clean,
// aggregate RFM against a single global cutoff, fit BG/NBD on the full
// population and Gamma-Gamma on the repeat subset, then combine and rank.
// Each stage fully consumes its input before the next begins; any stage
// failure aborts the run.
func Run(rows [][]string, params Params) (*Result, error) {
	lines, stats, err := txn.Clean(rows)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, eris.Wrap(txn.ErrEmpty, "clv: nothing to model")
	}

	cutoff := rfm.Cutoff(lines)
	summaries := rfm.Summarize(lines, cutoff)
	ids := rfm.CustomerIDs(summaries)

	zap.L().Info("clv: RFM aggregation complete",
		zap.Int("customers", len(summaries)),
		zap.Time("cutoff", cutoff),
	)

	// Full-population vectors for the purchase model, in customer id order.
	frequency := make([]float64, len(ids))
	recency := make([]float64, len(ids))
	age := make([]float64, len(ids))
	for i, id := range ids {
		s := summaries[id]
		frequency[i] = s.Frequency
		recency[i] = s.Recency
		age[i] = s.Age
	}

	purchaseModel, err := btyd.FitBGNBD(frequency, recency, age, params.BGNBD)
	if err != nil {
		return nil, err
	}

	horizonDays := params.HorizonDays()
	predicted := purchaseModel.PredictPurchases(horizonDays, frequency, recency, age)
	purchases := make(map[int64]float64, len(ids))
	for i, id := range ids {
		purchases[id] = predicted[i]
	}

	// Repeat-customer subset for the monetary model, re-joined by id.
	var repeatIDs []int64
	var repeatFreq, repeatMonetary []float64
	for _, id := range ids {
		s := summaries[id]
		if s.Frequency > 0 {
			repeatIDs = append(repeatIDs, id)
			repeatFreq = append(repeatFreq, s.Frequency)
			repeatMonetary = append(repeatMonetary, s.MonetaryValue)
		}
	}

	zap.L().Info("clv: fitting monetary model",
		zap.Int("repeat_customers", len(repeatIDs)),
		zap.Float64("horizon_days", horizonDays),
	)

	monetaryModel, err := btyd.FitGammaGamma(repeatFreq, repeatMonetary, params.GammaGamma)
	if err != nil {
		return nil, err
	}

	values := make(map[int64]float64, len(repeatIDs))
	for i, v := range monetaryModel.PredictValues(repeatFreq, repeatMonetary) {
		values[repeatIDs[i]] = v
	}

	records, err := Combine(summaries, purchases, values)
	if err != nil {
		return nil, err
	}
	Rank(records)

	return &Result{
		Stats:    stats,
		Cutoff:   cutoff,
		Purchase: purchaseModel,
		Monetary: monetaryModel,
		Records:  records,
	}, nil
}
