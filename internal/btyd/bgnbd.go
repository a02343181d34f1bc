package btyd

import (
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// BGNBD is a fitted BG/NBD purchase-timing model. Purchasing while alive is
// Poisson with a Gamma(r, alpha) heterogeneous rate; dropout after each
// purchase is Beta(a, b) heterogeneous.
type BGNBD struct {
	R     float64
	Alpha float64
	A     float64
	B     float64

	LogLikelihood float64 // penalized mean negative log-likelihood at the optimum
	Customers     int
}

// FitBGNBD fits the model to (frequency, recency, age) triples covering the
// full customer population, zero-repeat customers included. Inputs must be
// aligned by index. Returns ErrFit on degenerate input (empty population,
// non-finite values, recency exceeding age, or no repeat purchasers) and on
// failed likelihood maximization.
func FitBGNBD(frequency, recency, age []float64, opts Options) (*BGNBD, error) {
	n := len(frequency)
	if n == 0 {
		return nil, eris.Wrap(ErrFit, "bgnbd: no customers")
	}
	if len(recency) != n || len(age) != n {
		return nil, eris.Wrapf(ErrFit, "bgnbd: input lengths differ (%d, %d, %d)", n, len(recency), len(age))
	}
	if !allFinite(frequency) || !allFinite(recency) || !allFinite(age) {
		return nil, eris.Wrap(ErrFit, "bgnbd: non-finite input")
	}

	anyRepeat := false
	for i := range frequency {
		if frequency[i] < 0 || recency[i] < 0 || age[i] < 0 {
			return nil, eris.Wrap(ErrFit, "bgnbd: negative input")
		}
		if recency[i] > age[i] {
			return nil, eris.Wrapf(ErrFit, "bgnbd: recency %.2f exceeds age %.2f at row %d", recency[i], age[i], i)
		}
		if frequency[i] > 0 {
			anyRepeat = true
		}
	}
	if !anyRepeat {
		return nil, eris.Wrap(ErrFit, "bgnbd: all frequencies are zero")
	}

	nll := bgnbdNLL(frequency, recency, age, opts.Penalizer)
	params, objective, err := maximizeLikelihood(nll, 4, opts.maxIterations())
	if err != nil {
		return nil, err
	}

	m := &BGNBD{
		R:             params[0],
		Alpha:         params[1],
		A:             params[2],
		B:             params[3],
		LogLikelihood: objective,
		Customers:     n,
	}

	zap.L().Info("btyd: BG/NBD fit",
		zap.Float64("r", m.R),
		zap.Float64("alpha", m.Alpha),
		zap.Float64("a", m.A),
		zap.Float64("b", m.B),
		zap.Float64("objective", objective),
		zap.Int("customers", n),
	)
	return m, nil
}

// bgnbdNLL returns the penalized mean negative log-likelihood.
func bgnbdNLL(frequency, recency, age []float64, penalizer float64) func([]float64) float64 {
	n := float64(len(frequency))
	return func(p []float64) float64 {
		r, alpha, a, b := p[0], p[1], p[2], p[3]

		var sum float64
		for i := range frequency {
			x, tx, T := frequency[i], recency[i], age[i]

			a1 := lgamma(r+x) - lgamma(r) + r*math.Log(alpha)
			a2 := lgamma(a+b) + lgamma(b+x) - lgamma(b) - lgamma(a+b+x)
			a3 := -(r + x) * math.Log(alpha+T)

			ll := a1 + a2
			if x > 0 {
				a4 := math.Log(a) - math.Log(b+x-1) - (r+x)*math.Log(alpha+tx)
				ll += logAddExp(a3, a4)
			} else {
				ll += a3
			}
			sum += ll
		}

		return -sum/n + penalizer*sumSquares(p)
	}
}

// ExpectedPurchases returns the conditional expected number of future
// purchase occasions within horizonDays for one customer with history
// (frequency x, recency tx, age T).
func (m *BGNBD) ExpectedPurchases(horizonDays, x, tx, T float64) float64 {
	r, alpha, a, b := m.R, m.Alpha, m.A, m.B
	t := horizonDays

	z := t / (alpha + T + t)
	hyp := hyp2f1(r+x, b+x, a+b+x-1, z)

	first := (a + b + x - 1) / (a - 1)
	second := 1 - hyp*math.Pow((alpha+T)/(alpha+T+t), r+x)

	denominator := 1.0
	if x > 0 {
		denominator += (a / (b + x - 1)) * math.Pow((alpha+T)/(alpha+tx), r+x)
	}

	return first * second / denominator
}

// PredictPurchases evaluates ExpectedPurchases for each input row, preserving
// alignment with the input order.
func (m *BGNBD) PredictPurchases(horizonDays float64, frequency, recency, age []float64) []float64 {
	out := make([]float64, len(frequency))
	for i := range frequency {
		out[i] = m.ExpectedPurchases(horizonDays, frequency[i], recency[i], age[i])
	}
	return out
}
