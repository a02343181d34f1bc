package btyd

import (
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// GammaGamma is a fitted Gamma-Gamma monetary model. It assumes observed
// average transaction values are Gamma(p, v_i) around a customer rate v_i
// that is itself Gamma(q, gamma) across the population, and that value is
// independent of purchase frequency.
type GammaGamma struct {
	P float64
	Q float64
	V float64 // population scale (gamma in the literature)

	LogLikelihood float64 // penalized mean negative log-likelihood at the optimum
	Customers     int
}

// FitGammaGamma fits the model to (frequency, monetary value) pairs for
// repeat customers only. Every frequency and monetary value must be strictly
// positive. Returns ErrFit on degenerate input or failed maximization.
func FitGammaGamma(frequency, monetary []float64, opts Options) (*GammaGamma, error) {
	n := len(frequency)
	if n == 0 {
		return nil, eris.Wrap(ErrFit, "gammagamma: no repeat customers")
	}
	if len(monetary) != n {
		return nil, eris.Wrapf(ErrFit, "gammagamma: input lengths differ (%d, %d)", n, len(monetary))
	}
	if !allFinite(frequency) || !allFinite(monetary) {
		return nil, eris.Wrap(ErrFit, "gammagamma: non-finite input")
	}
	for i := range frequency {
		if frequency[i] <= 0 {
			return nil, eris.Wrapf(ErrFit, "gammagamma: non-repeat customer at row %d", i)
		}
		if monetary[i] <= 0 {
			return nil, eris.Wrapf(ErrFit, "gammagamma: non-positive monetary value at row %d", i)
		}
	}

	nll := gammaGammaNLL(frequency, monetary, opts.Penalizer)
	params, objective, err := maximizeLikelihood(nll, 3, opts.maxIterations())
	if err != nil {
		return nil, err
	}

	m := &GammaGamma{
		P:             params[0],
		Q:             params[1],
		V:             params[2],
		LogLikelihood: objective,
		Customers:     n,
	}

	zap.L().Info("btyd: Gamma-Gamma fit",
		zap.Float64("p", m.P),
		zap.Float64("q", m.Q),
		zap.Float64("v", m.V),
		zap.Float64("objective", objective),
		zap.Int("customers", n),
	)
	return m, nil
}

func gammaGammaNLL(frequency, monetary []float64, penalizer float64) func([]float64) float64 {
	n := float64(len(frequency))
	return func(params []float64) float64 {
		p, q, v := params[0], params[1], params[2]

		var sum float64
		for i := range frequency {
			x, m := frequency[i], monetary[i]
			sum += lgamma(p*x+q) - lgamma(p*x) - lgamma(q) +
				q*math.Log(v) +
				(p*x-1)*math.Log(m) +
				p*x*math.Log(x) -
				(p*x+q)*math.Log(v+m*x)
		}

		return -sum/n + penalizer*sumSquares(params)
	}
}

// ConditionalExpectedValue returns the expected per-transaction value for a
// customer with x observed repeat occasions of mean value m: a weighted
// average of the customer's own mean and the population mean, with weight
// growing in x.
func (g *GammaGamma) ConditionalExpectedValue(x, m float64) float64 {
	weight := g.P * x / (g.P*x + g.Q - 1)
	populationMean := g.V * g.P / (g.Q - 1)
	return (1-weight)*populationMean + weight*m
}

// PredictValues evaluates ConditionalExpectedValue per row, aligned with the
// input order.
func (g *GammaGamma) PredictValues(frequency, monetary []float64) []float64 {
	out := make([]float64, len(frequency))
	for i := range frequency {
		out[i] = g.ConditionalExpectedValue(frequency[i], monetary[i])
	}
	return out
}
