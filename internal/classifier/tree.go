package classifier

import (
	"cmp"
	"math/rand/v2"
	"slices"
)

const numClasses = 2

// Node is one node of a decision tree. Leaves carry class probabilities
// indexed like domain.Moods(); inner nodes send rows with
// x[Feature] <= Threshold to Left.
type Node struct {
	Leaf      bool
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Probs     [numClasses]float64
}

// Tree is a CART classification tree stored as a flat node slice rooted at 0.
type Tree struct {
	Nodes []Node
}

func (t *Tree) predict(x []float64) [numClasses]float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Leaf {
			return n.Probs
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// grower builds one tree and accumulates its impurity decreases.
type grower struct {
	x          [][]float64
	y          []int
	maxDepth   int
	minLeaf    int
	maxFeature int
	rng        *rand.Rand

	nodes      []Node
	importance []float64
}

func gini(counts [numClasses]int, n int) float64 {
	if n == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		g -= p * p
	}
	return g
}

func (g *grower) count(idx []int) [numClasses]int {
	var counts [numClasses]int
	for _, i := range idx {
		counts[g.y[i]]++
	}
	return counts
}

func (g *grower) leaf(counts [numClasses]int, n int) int {
	node := Node{Leaf: true}
	for c := range counts {
		node.Probs[c] = float64(counts[c]) / float64(n)
	}
	g.nodes = append(g.nodes, node)
	return len(g.nodes) - 1
}

type candidate struct {
	feature   int
	threshold float64
	decrease  float64
	pos       int // rows [0, pos) of the sorted order go left
}

// grow builds the subtree over idx and returns its node index.
func (g *grower) grow(idx []int, depth int) int {
	counts := g.count(idx)
	n := len(idx)
	impurity := gini(counts, n)

	if impurity == 0 || n < 2*g.minLeaf || (g.maxDepth > 0 && depth >= g.maxDepth) {
		return g.leaf(counts, n)
	}

	best, ok := g.bestSplit(idx, counts, impurity)
	if !ok {
		return g.leaf(counts, n)
	}

	sorted := slices.Clone(idx)
	g.sortBy(sorted, best.feature)
	left, right := sorted[:best.pos], sorted[best.pos:]

	g.importance[best.feature] += best.decrease
	self := len(g.nodes)
	g.nodes = append(g.nodes, Node{Feature: best.feature, Threshold: best.threshold})
	l := g.grow(left, depth+1)
	r := g.grow(right, depth+1)
	g.nodes[self].Left = l
	g.nodes[self].Right = r
	return self
}

func (g *grower) sortBy(idx []int, feature int) {
	slices.SortStableFunc(idx, func(a, b int) int {
		return cmp.Compare(g.x[a][feature], g.x[b][feature])
	})
}

// bestSplit scans midpoints between distinct values of maxFeature randomly
// drawn features. The decrease is weighted by node size so summed
// importances equal the total impurity removed.
func (g *grower) bestSplit(idx []int, counts [numClasses]int, impurity float64) (candidate, bool) {
	n := len(idx)
	features := g.rng.Perm(len(g.x[0]))[:g.maxFeature]
	sorted := slices.Clone(idx)

	var best candidate
	found := false
	for _, f := range features {
		g.sortBy(sorted, f)

		var left [numClasses]int
		for pos := 1; pos < n; pos++ {
			left[g.y[sorted[pos-1]]]++
			lo, hi := g.x[sorted[pos-1]][f], g.x[sorted[pos]][f]
			if lo == hi || pos < g.minLeaf || n-pos < g.minLeaf {
				continue
			}

			var right [numClasses]int
			for c := range right {
				right[c] = counts[c] - left[c]
			}
			decrease := float64(n)*impurity -
				float64(pos)*gini(left, pos) -
				float64(n-pos)*gini(right, n-pos)
			if decrease > best.decrease+1e-12 {
				threshold := lo + (hi-lo)/2
				if threshold >= hi {
					threshold = lo
				}
				best = candidate{feature: f, threshold: threshold, decrease: decrease, pos: pos}
				found = true
			}
		}
	}
	return best, found
}
