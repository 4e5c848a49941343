package analysis

import (
	"math/rand/v2"
	"sort"
)

const minSplitGain = 1e-12

type treeParams struct {
	maxDepth     int
	minLeafSize  int
	featureCount int
	rng          *rand.Rand
}

type treeNode struct {
	isLeaf    bool
	class     int
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
}

// decisionTree is a binary CART classifier with Gini impurity splits.
// Importances follow the mean-decrease-in-impurity convention: each
// split contributes its impurity reduction weighted by the fraction of
// samples it sees, normalized to sum one.
type decisionTree struct {
	root *treeNode
	imp  []float64
}

type treeFitter struct {
	x      [][]float64
	y      []int
	params treeParams
	total  float64
	imp    []float64
}

// fitTree grows a tree on the given row indices. Rows may repeat, which
// is how bootstrap samples arrive from the forest.
func fitTree(x [][]float64, y []int, rows []int, params treeParams) *decisionTree {
	if params.maxDepth <= 0 {
		params.maxDepth = 10
	}
	if params.minLeafSize <= 0 {
		params.minLeafSize = 1
	}
	fitter := &treeFitter{
		x:      x,
		y:      y,
		params: params,
		total:  float64(len(rows)),
		imp:    make([]float64, len(x[0])),
	}
	root := fitter.grow(rows, 0)
	normalizeSum(fitter.imp)
	return &decisionTree{root: root, imp: fitter.imp}
}

func (t *decisionTree) predict(row []float64) int {
	node := t.root
	for !node.isLeaf {
		if row[node.feature] <= node.threshold {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node.class
}

func (t *decisionTree) importances() []float64 { return t.imp }

func (f *treeFitter) grow(rows []int, depth int) *treeNode {
	counts := f.classCounts(rows)
	if depth >= f.params.maxDepth || len(rows) < 2*f.params.minLeafSize ||
		counts[0] == 0 || counts[1] == 0 {
		return &treeNode{isLeaf: true, class: majorityClass(counts)}
	}

	feature, threshold, gain, ok := f.bestSplit(rows, counts)
	if !ok {
		return &treeNode{isLeaf: true, class: majorityClass(counts)}
	}
	f.imp[feature] += (float64(len(rows)) / f.total) * gain

	var left, right []int
	for _, row := range rows {
		if f.x[row][feature] <= threshold {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}
	return &treeNode{
		feature:   feature,
		threshold: threshold,
		left:      f.grow(left, depth+1),
		right:     f.grow(right, depth+1),
	}
}

func (f *treeFitter) bestSplit(rows []int, counts [2]int) (feature int, threshold, gain float64, ok bool) {
	parent := gini(counts, len(rows))
	bestGain := 0.0

	for _, feat := range f.candidateFeatures() {
		ordered := make([]int, len(rows))
		copy(ordered, rows)
		sort.Slice(ordered, func(i, j int) bool {
			return f.x[ordered[i]][feat] < f.x[ordered[j]][feat]
		})

		var leftCounts [2]int
		n := len(ordered)
		for i := 1; i < n; i++ {
			leftCounts[f.y[ordered[i-1]]]++
			prev, cur := f.x[ordered[i-1]][feat], f.x[ordered[i]][feat]
			if cur == prev {
				continue
			}
			if i < f.params.minLeafSize || n-i < f.params.minLeafSize {
				continue
			}
			rightCounts := [2]int{counts[0] - leftCounts[0], counts[1] - leftCounts[1]}
			weighted := (float64(i)/float64(n))*gini(leftCounts, i) +
				(float64(n-i)/float64(n))*gini(rightCounts, n-i)
			if g := parent - weighted; g > bestGain {
				bestGain = g
				feature = feat
				threshold = (prev + cur) / 2
			}
		}
	}

	if bestGain <= minSplitGain {
		return 0, 0, 0, false
	}
	return feature, threshold, bestGain, true
}

// candidateFeatures returns the feature indices considered at one split:
// all of them, or a random subset when the forest asks for one.
func (f *treeFitter) candidateFeatures() []int {
	p := len(f.x[0])
	if f.params.featureCount <= 0 || f.params.featureCount >= p || f.params.rng == nil {
		all := make([]int, p)
		for i := range all {
			all[i] = i
		}
		return all
	}
	perm := f.params.rng.Perm(p)
	subset := perm[:f.params.featureCount]
	sort.Ints(subset)
	return subset
}

func (f *treeFitter) classCounts(rows []int) [2]int {
	var counts [2]int
	for _, row := range rows {
		counts[f.y[row]]++
	}
	return counts
}

func gini(counts [2]int, n int) float64 {
	if n == 0 {
		return 0
	}
	p0 := float64(counts[0]) / float64(n)
	p1 := float64(counts[1]) / float64(n)
	return 1 - p0*p0 - p1*p1
}

func majorityClass(counts [2]int) int {
	if counts[1] > counts[0] {
		return 1
	}
	return 0
}

func normalizeSum(values []float64) {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	if sum <= 0 {
		return
	}
	for i := range values {
		values[i] /= sum
	}
}
