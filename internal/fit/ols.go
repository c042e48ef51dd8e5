package fit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/starford/regnet/internal/apperr"
)

// maxCond bounds the condition number of X'X; above it the design is
// treated as rank deficient.
const maxCond = 1e12

// olsResult is a Gaussian linear model fit with an intercept.
type olsResult struct {
	intercept float64
	coef      []float64
	stdErr    []float64
	tstat     []float64
	pvalue    []float64
	rsq       float64
	adjRsq    float64
}

// ols regresses y on the columns of x (n x k, no intercept column) after
// standardizing every column. Reported coefficients are per standard
// deviation of the predictor.
func ols(x *mat.Dense, y []float64) (*olsResult, error) {
	n, k := x.Dims()
	p := k + 1
	if n <= p {
		return nil, fmt.Errorf("%d cells for %d parameters: %w", n, p, apperr.ErrInsufficientData)
	}
	if !finite(y) {
		return nil, fmt.Errorf("response has non-finite values: %w", apperr.ErrInsufficientData)
	}

	design := mat.NewDense(n, p, nil)
	col := make([]float64, n)
	for i := 0; i < n; i++ {
		design.Set(i, 0, 1)
	}
	for j := 0; j < k; j++ {
		mat.Col(col, j, x)
		if !finite(col) {
			return nil, fmt.Errorf("term %d has non-finite values: %w", j, apperr.ErrInsufficientData)
		}
		mean, sd := stat.MeanStdDev(col, nil)
		if sd == 0 || math.IsNaN(sd) {
			return nil, fmt.Errorf("term %d is constant: %w", j, apperr.ErrInsufficientData)
		}
		for i, v := range col {
			design.Set(i, j+1, (v-mean)/sd)
		}
	}

	xtx := mat.NewSymDense(p, nil)
	xtx.SymOuterK(1, design.T())
	var chol mat.Cholesky
	if ok := chol.Factorize(xtx); !ok || chol.Cond() > maxCond {
		return nil, fmt.Errorf("design is rank deficient: %w", apperr.ErrInsufficientData)
	}

	yv := mat.NewVecDense(n, y)
	xty := mat.NewVecDense(p, nil)
	xty.MulVec(design.T(), yv)
	beta := mat.NewVecDense(p, nil)
	if err := chol.SolveVecTo(beta, xty); err != nil {
		return nil, fmt.Errorf("solve normal equations: %w", apperr.ErrInsufficientData)
	}

	fitted := mat.NewVecDense(n, nil)
	fitted.MulVec(design, beta)
	ymean := stat.Mean(y, nil)
	var rss, tss float64
	for i := 0; i < n; i++ {
		r := y[i] - fitted.AtVec(i)
		rss += r * r
		d := y[i] - ymean
		tss += d * d
	}
	if tss == 0 {
		return nil, fmt.Errorf("response is constant: %w", apperr.ErrInsufficientData)
	}
	if math.IsNaN(rss) || math.IsInf(rss, 0) || math.IsInf(tss, 0) {
		return nil, fmt.Errorf("residuals are not finite: %w", apperr.ErrInsufficientData)
	}

	df := float64(n - p)
	sigma2 := rss / df
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, fmt.Errorf("invert X'X: %w", apperr.ErrInsufficientData)
	}
	tdist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}

	res := &olsResult{
		intercept: beta.AtVec(0),
		coef:      make([]float64, k),
		stdErr:    make([]float64, k),
		tstat:     make([]float64, k),
		pvalue:    make([]float64, k),
		rsq:       1 - rss/tss,
	}
	if math.IsNaN(res.rsq) || math.IsInf(res.rsq, 0) {
		return nil, fmt.Errorf("R² is not finite: %w", apperr.ErrInsufficientData)
	}
	res.adjRsq = 1 - (1-res.rsq)*float64(n-1)/df
	for j := 0; j < k; j++ {
		b := beta.AtVec(j + 1)
		se := math.Sqrt(sigma2 * inv.At(j+1, j+1))
		res.coef[j] = b
		res.stdErr[j] = se
		if se == 0 {
			// Exact fit: keep the statistic finite so results stay JSON-safe.
			res.tstat[j] = math.Copysign(math.MaxFloat64, b)
			res.pvalue[j] = 0
			continue
		}
		t := b / se
		res.tstat[j] = t
		res.pvalue[j] = math.Min(1, 2*tdist.Survival(math.Abs(t)))
	}
	return res, nil
}

func finite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
