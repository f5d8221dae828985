package forecast

import (
	"errors"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ridgePenalty keeps the normal equations positive definite when a feature
// column is constant.
const ridgePenalty = 1e-6

// trend is a ridge regression on standardized features. Standardized
// training columns have zero mean, so the intercept is the label mean.
type trend struct {
	weights   []float64
	intercept float64
}

func fitTrend(x [][]float64, y []float64) (*trend, error) {
	n := len(x)
	if n == 0 {
		return nil, errors.New("fit trend: no rows")
	}
	p := len(x[0])

	design := mat.NewDense(n, p, nil)
	for i, row := range x {
		design.SetRow(i, row)
	}

	intercept := stat.Mean(y, nil)
	centered := mat.NewVecDense(n, nil)
	for i, v := range y {
		centered.SetVec(i, v-intercept)
	}

	var gram mat.SymDense
	gram.SymOuterK(1, design.T())
	for j := range p {
		gram.SetSym(j, j, gram.At(j, j)+ridgePenalty*float64(n))
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(&gram); !ok {
		return nil, errors.New("fit trend: normal equations are not positive definite")
	}

	var rhs mat.VecDense
	rhs.MulVec(design.T(), centered)

	var w mat.VecDense
	if err := chol.SolveVecTo(&w, &rhs); err != nil {
		return nil, err
	}

	return &trend{weights: mat.Col(nil, 0, &w), intercept: intercept}, nil
}

func (t *trend) predict(x []float64) float64 {
	v := t.intercept
	for j, w := range t.weights {
		v += w * x[j]
	}
	return v
}
