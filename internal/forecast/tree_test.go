package forecast

import "testing"

func TestBuildTree_FitsSimpleStep(t *testing.T) {
	X := [][]float64{{0}, {1}, {2}, {3}, {4}, {10}, {11}, {12}, {13}, {14}}
	target := []float64{1, 1, 1, 1, 1, 9, 9, 9, 9, 9}
	idx := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

	tree := buildTree(X, target, idx, 0)
	for i, row := range X {
		got := predictTree(tree, row)
		if diff := got - target[i]; diff > 0.5 || diff < -0.5 {
			t.Errorf("predictTree(%v) = %v, want close to %v", row, got, target[i])
		}
	}
}

func TestBuildTree_LeafWhenTooFewSamples(t *testing.T) {
	X := [][]float64{{0}, {1}}
	target := []float64{5, 7}
	tree := buildTree(X, target, []int{0, 1}, 0)
	if !tree.IsLeaf {
		t.Fatal("expected a leaf for a sample count below 2*treeMinSamplesLeaf")
	}
	if tree.Value != 6 {
		t.Errorf("leaf value = %v, want mean 6", tree.Value)
	}
}

func TestSSEAt_ZeroForConstant(t *testing.T) {
	v := []float64{5, 5, 5}
	if got := sseAt(v, []int{0, 1, 2}); got != 0 {
		t.Errorf("sseAt = %v, want 0 for constant values", got)
	}
}
