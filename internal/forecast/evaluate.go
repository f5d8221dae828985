package forecast

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// exactTolerance is the largest squared-error sum still treated as a
// perfect fit when the target has no variance.
const exactTolerance = 1e-9

// Scores are the test-split quality measures of one training run.
type Scores struct {
	MAE       float64 `json:"mae"`
	RMSE      float64 `json:"rmse"`
	R2Percent float64 `json:"r2_percent"`
}

// score compares predictions with actual labels. A constant target scores
// R² 100 when predicted exactly and 0 otherwise.
func score(predicted, actual []float64) Scores {
	if len(actual) == 0 {
		return Scores{}
	}
	abs := make([]float64, len(actual))
	sq := make([]float64, len(actual))
	var ssRes float64
	for i := range actual {
		d := predicted[i] - actual[i]
		abs[i] = math.Abs(d)
		sq[i] = d * d
		ssRes += sq[i]
	}

	s := Scores{
		MAE:  stat.Mean(abs, nil),
		RMSE: math.Sqrt(stat.Mean(sq, nil)),
	}

	mean := stat.Mean(actual, nil)
	var ssTot float64
	for _, v := range actual {
		ssTot += (v - mean) * (v - mean)
	}
	switch {
	case ssTot == 0 && ssRes <= exactTolerance:
		s.R2Percent = 100
	case ssTot == 0:
		s.R2Percent = 0
	default:
		s.R2Percent = stat.RSquaredFrom(predicted, actual, nil) * 100
	}
	return s
}
