package analysis

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

type logisticParams struct {
	iterations   int
	learningRate float64
	l2           float64
}

func defaultLogisticParams() logisticParams {
	return logisticParams{iterations: 400, learningRate: 0.1, l2: 1e-4}
}

// logisticModel is an L2-regularized logistic regression fitted by
// gradient descent on z-scored features. Importance is the normalized
// coefficient magnitude, which is only meaningful because the features
// are standardized first.
type logisticModel struct {
	weights *mat.VecDense
	bias    float64
	means   []float64
	stds    []float64
}

func fitLogistic(x [][]float64, y []int, params logisticParams) *logisticModel {
	n := len(x)
	p := len(x[0])

	means, stds := columnScalers(x)
	data := mat.NewDense(n, p, nil)
	for i, row := range x {
		for j, v := range row {
			data.Set(i, j, (v-means[j])/stds[j])
		}
	}
	target := mat.NewVecDense(n, nil)
	for i, class := range y {
		target.SetVec(i, float64(class))
	}

	weights := mat.NewVecDense(p, nil)
	bias := 0.0
	z := mat.NewVecDense(n, nil)
	diff := mat.NewVecDense(n, nil)
	grad := mat.NewVecDense(p, nil)
	for iter := 0; iter < params.iterations; iter++ {
		z.MulVec(data, weights)
		diffSum := 0.0
		for i := 0; i < n; i++ {
			d := sigmoid(z.AtVec(i)+bias) - target.AtVec(i)
			diff.SetVec(i, d)
			diffSum += d
		}
		grad.MulVec(data.T(), diff)
		grad.AddScaledVec(grad, params.l2*float64(n), weights)
		weights.AddScaledVec(weights, -params.learningRate/float64(n), grad)
		bias -= params.learningRate * diffSum / float64(n)
	}

	return &logisticModel{weights: weights, bias: bias, means: means, stds: stds}
}

func (m *logisticModel) predict(row []float64) int {
	z := m.bias
	for j, v := range row {
		z += m.weights.AtVec(j) * (v - m.means[j]) / m.stds[j]
	}
	if sigmoid(z) >= 0.5 {
		return 1
	}
	return 0
}

func (m *logisticModel) importances() []float64 {
	imp := make([]float64, m.weights.Len())
	for j := range imp {
		imp[j] = math.Abs(m.weights.AtVec(j))
	}
	normalizeSum(imp)
	return imp
}

// columnScalers returns per-column mean and standard deviation, with
// zero deviations replaced by one so constant columns pass through
// unscaled instead of dividing by zero.
func columnScalers(x [][]float64) (means, stds []float64) {
	p := len(x[0])
	means = make([]float64, p)
	stds = make([]float64, p)
	column := make([]float64, len(x))
	for j := 0; j < p; j++ {
		for i, row := range x {
			column[i] = row[j]
		}
		means[j] = stat.Mean(column, nil)
		stds[j] = stat.StdDev(column, nil)
		if stds[j] == 0 || math.IsNaN(stds[j]) {
			stds[j] = 1
		}
	}
	return means, stds
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
