// Package btyd implements the two buy-till-you-die models behind the CLV
// pipeline: a BG/NBD purchase-timing model fit on every customer, and a
// Gamma-Gamma monetary model fit on repeat customers only. Both are fit by
// penalized maximum likelihood with Nelder-Mead over log-parameters.
package btyd

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/optimize"
)

// ErrFit indicates a model could not be fit: degenerate input or a failed
// likelihood maximization. Retrying with the same data cannot succeed.
var ErrFit = eris.New("btyd: model fit failed")

// Options tunes a model fit.
type Options struct {
	// Penalizer scales a sum-of-squares penalty on the natural parameters,
	// added to the mean negative log-likelihood.
	Penalizer float64
	// MaxIterations caps the Nelder-Mead iterations. 0 means 10000.
	MaxIterations int
}

const defaultMaxIterations = 10000

func (o Options) maxIterations() int {
	if o.MaxIterations <= 0 {
		return defaultMaxIterations
	}
	return o.MaxIterations
}

// maximizeLikelihood minimizes nll over dim strictly positive parameters by
// optimizing their logarithms from a starting point of all ones. Returns the
// natural parameters and the final objective value.
func maximizeLikelihood(nll func(params []float64) float64, dim, maxIter int) ([]float64, float64, error) {
	problem := optimize.Problem{
		Func: func(logParams []float64) float64 {
			params := make([]float64, dim)
			for i, lp := range logParams {
				params[i] = math.Exp(lp)
			}
			v := nll(params)
			if math.IsNaN(v) {
				return math.Inf(1)
			}
			return v
		},
	}

	x0 := make([]float64, dim) // exp(0) = 1
	settings := &optimize.Settings{MajorIterations: maxIter}

	result, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
	if err != nil {
		return nil, 0, eris.Wrap(ErrFit, err.Error())
	}
	if !isFinite(result.F) {
		return nil, 0, eris.Wrap(ErrFit, "likelihood did not evaluate to a finite value")
	}

	params := make([]float64, dim)
	for i, lp := range result.Location.X {
		params[i] = math.Exp(lp)
		if !isFinite(params[i]) || params[i] <= 0 {
			return nil, 0, eris.Wrapf(ErrFit, "parameter %d is not a positive finite value", i)
		}
	}
	return params, result.F, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func allFinite(vs []float64) bool {
	for _, v := range vs {
		if !isFinite(v) {
			return false
		}
	}
	return true
}

func sumSquares(vs []float64) float64 {
	var s float64
	for _, v := range vs {
		s += v * v
	}
	return s
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}

// logAddExp computes log(exp(a) + exp(b)) without overflow.
func logAddExp(a, b float64) float64 {
	if a < b {
		a, b = b, a
	}
	if math.IsInf(a, -1) {
		return a
	}
	return a + math.Log1p(math.Exp(b-a))
}

// hyp2f1 evaluates the Gauss hypergeometric function 2F1(a, b; c; z) by its
// power series, valid for 0 <= z < 1 as arises in the BG/NBD predictor where
// z = t / (alpha + T + t).
func hyp2f1(a, b, c, z float64) float64 {
	term := 1.0
	sum := 1.0
	for k := 0; k < 1000; k++ {
		fk := float64(k)
		term *= (a + fk) * (b + fk) / (c + fk) * z / (fk + 1)
		sum += term
		if math.Abs(term) < 1e-12*math.Abs(sum) {
			break
		}
	}
	return sum
}
