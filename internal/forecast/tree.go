package forecast

import (
	"slices"
)

// treeParams bounds the growth of a regression tree.
type treeParams struct {
	maxDepth int
	minLeaf  int
}

// node is either a leaf (left == nil) holding value, or a split sending rows
// with x[feature] <= threshold left.
type node struct {
	feature   int
	threshold float64
	value     float64
	left      *node
	right     *node
}

func (n *node) predict(x []float64) float64 {
	for n.left != nil {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

// fitTree grows a CART regression tree over the rows listed in idx,
// choosing at each node the split with the lowest summed squared error.
func fitTree(x [][]float64, y []float64, idx []int, params treeParams) *node {
	return grow(x, y, idx, params, 0)
}

func grow(x [][]float64, y []float64, idx []int, params treeParams, depth int) *node {
	mean, sse := meanSSE(y, idx)
	leaf := &node{value: mean}
	if depth >= params.maxDepth || len(idx) < 2*params.minLeaf || sse <= 1e-12 {
		return leaf
	}

	feature, threshold, ok := bestSplit(x, y, idx, params.minLeaf, sse)
	if !ok {
		return leaf
	}

	var left, right []int
	for _, i := range idx {
		if x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &node{
		feature:   feature,
		threshold: threshold,
		value:     mean,
		left:      grow(x, y, left, params, depth+1),
		right:     grow(x, y, right, params, depth+1),
	}
}

// bestSplit scans every feature in sorted order, keeping running sums so
// each candidate threshold is scored in constant time.
func bestSplit(x [][]float64, y []float64, idx []int, minLeaf int, parentSSE float64) (feature int, threshold float64, ok bool) {
	n := len(idx)
	sorted := make([]int, n)
	bestSSE := parentSSE

	var totalSum, totalSq float64
	for _, i := range idx {
		totalSum += y[i]
		totalSq += y[i] * y[i]
	}

	for f := range len(x[idx[0]]) {
		copy(sorted, idx)
		slices.SortFunc(sorted, func(a, b int) int {
			switch {
			case x[a][f] < x[b][f]:
				return -1
			case x[a][f] > x[b][f]:
				return 1
			default:
				return 0
			}
		})

		var leftSum, leftSq float64
		for k := 0; k < n-1; k++ {
			v := y[sorted[k]]
			leftSum += v
			leftSq += v * v

			nl := k + 1
			nr := n - nl
			if nl < minLeaf || nr < minLeaf {
				continue
			}
			lo, hi := x[sorted[k]][f], x[sorted[k+1]][f]
			if lo == hi {
				continue
			}

			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/float64(nl)) + (rightSq - rightSum*rightSum/float64(nr))
			if sse < bestSSE-1e-12 {
				bestSSE = sse
				feature = f
				threshold = lo + (hi-lo)/2
				ok = true
			}
		}
	}
	return feature, threshold, ok
}

func meanSSE(y []float64, idx []int) (mean, sse float64) {
	if len(idx) == 0 {
		return 0, 0
	}
	for _, i := range idx {
		mean += y[i]
	}
	mean /= float64(len(idx))
	for _, i := range idx {
		d := y[i] - mean
		sse += d * d
	}
	return mean, sse
}
