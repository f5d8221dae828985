package forecast

import (
	"math/rand/v2"
)

// forest is a bagged ensemble of regression trees. Its prediction is the
// mean of the member trees.
type forest struct {
	trees []*node
}

// fitForest trains size trees, each on a bootstrap sample of the rows.
// The same seed always yields the same forest.
func fitForest(x [][]float64, y []float64, size int, seed uint64, params treeParams) *forest {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	n := len(x)
	f := &forest{trees: make([]*node, size)}
	sample := make([]int, n)
	for t := range size {
		for i := range sample {
			sample[i] = rng.IntN(n)
		}
		f.trees[t] = fitTree(x, y, sample, params)
	}
	return f
}

func (f *forest) predict(x []float64) float64 {
	if len(f.trees) == 0 {
		return 0
	}
	var sum float64
	for _, t := range f.trees {
		sum += t.predict(x)
	}
	return sum / float64(len(f.trees))
}
