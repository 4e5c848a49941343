package analysis

import (
	"math"
	"math/rand/v2"
)

type forestParams struct {
	trees       int
	maxDepth    int
	minLeafSize int
	seed        int64
}

// forest is a bagged ensemble of CART trees with sqrt(p) feature
// subsampling per split. The seed fixes both bootstrap draws and feature
// subsets, so the same table always yields the same ranking.
type forest struct {
	trees []*decisionTree
	imp   []float64
}

func fitForest(x [][]float64, y []int, params forestParams) *forest {
	if params.trees <= 0 {
		params.trees = 50
	}
	rng := rand.New(rand.NewPCG(uint64(params.seed), uint64(params.seed)))

	n := len(x)
	p := len(x[0])
	subset := int(math.Ceil(math.Sqrt(float64(p))))

	imp := make([]float64, p)
	trees := make([]*decisionTree, 0, params.trees)
	for i := 0; i < params.trees; i++ {
		rows := make([]int, n)
		for j := range rows {
			rows[j] = rng.IntN(n)
		}
		tree := fitTree(x, y, rows, treeParams{
			maxDepth:     params.maxDepth,
			minLeafSize:  params.minLeafSize,
			featureCount: subset,
			rng:          rng,
		})
		trees = append(trees, tree)
		for f, v := range tree.importances() {
			imp[f] += v
		}
	}
	normalizeSum(imp)
	return &forest{trees: trees, imp: imp}
}

func (f *forest) predict(row []float64) int {
	votes := 0
	for _, tree := range f.trees {
		votes += tree.predict(row)
	}
	if votes*2 > len(f.trees) {
		return 1
	}
	return 0
}

func (f *forest) importances() []float64 { return f.imp }
