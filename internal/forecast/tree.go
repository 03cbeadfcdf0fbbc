package forecast

import "sort"

// treeNode is one node of a hand-rolled CART regression tree, the weak
// learner boosted by Train. There is no GBT library in the example
// pack (see DESIGN.md), so splitting and prediction are plain recursive
// Go, mirroring the small-matrix, no-external-solver style of the
// teacher's portfolio optimizer.
type treeNode struct {
	IsLeaf    bool       `json:"leaf"`
	Value     float64    `json:"value,omitempty"`
	FeatIdx   int        `json:"featIdx,omitempty"`
	Threshold float64    `json:"threshold,omitempty"`
	Left      *treeNode  `json:"left,omitempty"`
	Right     *treeNode  `json:"right,omitempty"`
}

func predictTree(n *treeNode, row []float64) float64 {
	for !n.IsLeaf {
		if row[n.FeatIdx] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

const (
	treeMaxDepth       = 3
	treeMinSamplesLeaf = 5
)

// buildTree greedily fits a depth-limited regression tree to (X, target)
// over the sample indices in idx, minimizing sum of squared error at each
// split (the standard CART criterion for a squared-error boosting stage).
func buildTree(X [][]float64, target []float64, idx []int, depth int) *treeNode {
	if depth >= treeMaxDepth || len(idx) < 2*treeMinSamplesLeaf {
		return &treeNode{IsLeaf: true, Value: meanAt(target, idx)}
	}

	bestFeat := -1
	bestThreshold := 0.0
	bestGain := 0.0
	parentSSE := sseAt(target, idx)

	nFeat := len(X[0])
	for f := 0; f < nFeat; f++ {
		sorted := make([]int, len(idx))
		copy(sorted, idx)
		sort.Slice(sorted, func(a, b int) bool { return X[sorted[a]][f] < X[sorted[b]][f] })

		for split := treeMinSamplesLeaf; split <= len(sorted)-treeMinSamplesLeaf; split++ {
			left := sorted[:split]
			right := sorted[split:]
			if X[left[len(left)-1]][f] == X[right[0]][f] {
				continue // identical values straddling the split, not a valid threshold
			}
			gain := parentSSE - sseAt(target, left) - sseAt(target, right)
			if gain > bestGain {
				bestGain = gain
				bestFeat = f
				bestThreshold = (X[left[len(left)-1]][f] + X[right[0]][f]) / 2
			}
		}
	}

	if bestFeat == -1 {
		return &treeNode{IsLeaf: true, Value: meanAt(target, idx)}
	}

	var left, right []int
	for _, i := range idx {
		if X[i][bestFeat] <= bestThreshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return &treeNode{
		IsLeaf:    false,
		FeatIdx:   bestFeat,
		Threshold: bestThreshold,
		Left:      buildTree(X, target, left, depth+1),
		Right:     buildTree(X, target, right, depth+1),
	}
}

func meanAt(v []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	sum := 0.0
	for _, i := range idx {
		sum += v[i]
	}
	return sum / float64(len(idx))
}

func sseAt(v []float64, idx []int) float64 {
	m := meanAt(v, idx)
	sum := 0.0
	for _, i := range idx {
		d := v[i] - m
		sum += d * d
	}
	return sum
}
