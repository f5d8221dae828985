package forecast

import (
	"math"

	"github.com/couchcryptid/weather-dashboard-service/internal/domain"
)

// dataset is a supervised view of an ascending record series: row i holds
// the features of record i and its label is the temperature of record i+1.
type dataset struct {
	x [][]float64
	y []float64
}

func buildDataset(records []domain.WeatherRecord) dataset {
	if len(records) < 2 {
		return dataset{}
	}
	n := len(records) - 1
	ds := dataset{x: make([][]float64, n), y: make([]float64, n)}
	for i := range n {
		ds.x[i] = records[i].Features()
		ds.y[i] = records[i+1].Temperature
	}
	return ds
}

// split divides the rows chronologically: the last ceil(20%) rows are the
// test set, the rest the training set. Rows are never shuffled.
func (d dataset) split() (train, test dataset) {
	n := len(d.y)
	nTest := int(math.Ceil(0.2 * float64(n)))
	nTrain := n - nTest
	train = dataset{x: d.x[:nTrain], y: d.y[:nTrain]}
	test = dataset{x: d.x[nTrain:], y: d.y[nTrain:]}
	return train, test
}
