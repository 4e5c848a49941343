package analysis

// classifier is the prediction surface shared by every model the
// analyzer can fit.
type classifier interface {
	predict(row []float64) int
}

type fitFunc func(x [][]float64, y []int) classifier

// crossValidate estimates accuracy with deterministic stratified k-fold
// splits: within each class, row i lands in fold i mod k, so the same
// table always produces the same folds. When a class has too few rows
// for two folds, the model is fitted and scored on the full data
// instead, and the returned fold count of one signals that the estimate
// is resubstitution-only.
func crossValidate(x [][]float64, y []int, folds int, fit fitFunc) (accuracy float64, foldsUsed int) {
	var perClass [2]int
	for _, class := range y {
		perClass[class]++
	}
	minClass := perClass[0]
	if perClass[1] < minClass {
		minClass = perClass[1]
	}
	if folds > minClass {
		folds = minClass
	}
	if folds < 2 {
		model := fit(x, y)
		return scoreRows(model, x, y, nil), 1
	}

	assignment := make([]int, len(y))
	var seen [2]int
	for i, class := range y {
		assignment[i] = seen[class] % folds
		seen[class]++
	}

	total := 0.0
	for fold := 0; fold < folds; fold++ {
		var trainX [][]float64
		var trainY []int
		var test []int
		for i := range y {
			if assignment[i] == fold {
				test = append(test, i)
			} else {
				trainX = append(trainX, x[i])
				trainY = append(trainY, y[i])
			}
		}
		model := fit(trainX, trainY)
		total += scoreRows(model, x, y, test)
	}
	return total / float64(folds), folds
}

// scoreRows returns the fraction of correct predictions over the given
// row indices, or over every row when rows is nil.
func scoreRows(model classifier, x [][]float64, y []int, rows []int) float64 {
	if rows == nil {
		rows = make([]int, len(y))
		for i := range rows {
			rows[i] = i
		}
	}
	if len(rows) == 0 {
		return 0
	}
	correct := 0
	for _, i := range rows {
		if model.predict(x[i]) == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(rows))
}
