package analysis

import (
	"fmt"
	"sort"

	"faultscope/internal/features"
	"faultscope/internal/services"
)

// Supported classifier codes.
const (
	AlgorithmRandomForest = "rf"
	AlgorithmDecisionTree = "dt"
	AlgorithmLogistic     = "lr"
)

// DisplayName returns the human name for a classifier code, or the code
// itself when it is unknown.
func DisplayName(algorithm string) string {
	switch algorithm {
	case AlgorithmRandomForest:
		return "Random Forest"
	case AlgorithmDecisionTree:
		return "Decision Tree"
	case AlgorithmLogistic:
		return "Logistic Regression"
	default:
		return algorithm
	}
}

// Params controls one analysis run.
type Params struct {
	Algorithm string
	OKLabel   string
	KOLabel   string
	Trees     int
	Folds     int
	Seed      int64
}

// RankedFeature is one (feature, sensor) pair with its within-sensor
// importance, the sensor model's accuracy, and the product of the two
// used for the global ordering.
type RankedFeature struct {
	Feature     string
	Sensor      string
	Importance  float64
	Accuracy    float64
	GlobalScore float64
}

// Column returns the qualified column name for this ranking entry.
func (r RankedFeature) Column() string {
	return QualifiedColumn(r.Sensor, r.Feature)
}

// SensorScore is one sensor's model accuracy, used as a reliability
// ordering across sensors.
type SensorScore struct {
	Sensor   string
	Accuracy float64
}

// Diagnostics summarizes how the estimate was obtained. Accuracy here is
// indicative: the datasets are small, so it orders features and sensors
// rather than certifying a deployable model.
type Diagnostics struct {
	Algorithm      string
	Sessions       int
	OKSessions     int
	KOSessions     int
	FoldsRequested int
	FoldsUsed      int
	CrossValidated bool
}

// Result is one immutable analysis outcome: the global ranking, the
// per-sensor reliability ordering, run diagnostics, and the table the
// models were fitted on.
type Result struct {
	Ranking      []RankedFeature
	SensorScores []SensorScore
	Diagnostics  Diagnostics
	Table        *Table
}

// TopFeatures returns the first n ranking entries.
func (r *Result) TopFeatures(n int) []RankedFeature {
	if n > len(r.Ranking) {
		n = len(r.Ranking)
	}
	return r.Ranking[:n]
}

// BestSensor returns the most reliable sensor, empty when no scores
// exist.
func (r *Result) BestSensor() string {
	if len(r.SensorScores) == 0 {
		return ""
	}
	return r.SensorScores[0].Sensor
}

type model interface {
	classifier
	importances() []float64
}

// Analyze builds the feature table and fits one discriminative model per
// sensor, then merges per-sensor importances into a single ranking
// scored by importance times that sensor's accuracy. Both label classes
// must be represented; nothing is computed otherwise. The ordering is
// fully deterministic: seeded models, deterministic folds, and name
// tie-breaks.
func Analyze(vectors []*features.Vector, params Params) (*Result, error) {
	params = normalizeParams(params)
	fit, err := modelFitter(params)
	if err != nil {
		return nil, err
	}

	table, err := BuildTable(vectors, params.OKLabel, params.KOLabel)
	if err != nil {
		return nil, err
	}
	okCount, koCount := table.ClassCounts()
	if okCount == 0 || koCount == 0 {
		return nil, services.Wrap(services.ErrClassDiversity, "analysis", "analyze",
			fmt.Sprintf("need sessions from both classes, have %d %s and %d %s",
				okCount, params.OKLabel, koCount, params.KOLabel), nil)
	}

	var ranking []RankedFeature
	var sensorScores []SensorScore
	foldsUsed := 0
	for _, sensor := range table.Sensors {
		x := table.SensorMatrix(sensor)
		accuracy, used := crossValidate(x, table.Classes, params.Folds, func(trainX [][]float64, trainY []int) classifier {
			return fit(trainX, trainY)
		})
		if used > foldsUsed {
			foldsUsed = used
		}

		fitted := fit(x, table.Classes)
		imp := fitted.importances()
		for j, feature := range table.Features {
			ranking = append(ranking, RankedFeature{
				Feature:     feature,
				Sensor:      sensor,
				Importance:  imp[j],
				Accuracy:    accuracy,
				GlobalScore: imp[j] * accuracy,
			})
		}
		sensorScores = append(sensorScores, SensorScore{Sensor: sensor, Accuracy: accuracy})
	}

	sort.SliceStable(ranking, func(i, j int) bool {
		if ranking[i].GlobalScore != ranking[j].GlobalScore {
			return ranking[i].GlobalScore > ranking[j].GlobalScore
		}
		if ranking[i].Feature != ranking[j].Feature {
			return ranking[i].Feature < ranking[j].Feature
		}
		return ranking[i].Sensor < ranking[j].Sensor
	})
	sort.SliceStable(sensorScores, func(i, j int) bool {
		if sensorScores[i].Accuracy != sensorScores[j].Accuracy {
			return sensorScores[i].Accuracy > sensorScores[j].Accuracy
		}
		return sensorScores[i].Sensor < sensorScores[j].Sensor
	})

	return &Result{
		Ranking:      ranking,
		SensorScores: sensorScores,
		Diagnostics: Diagnostics{
			Algorithm:      params.Algorithm,
			Sessions:       table.NumRows(),
			OKSessions:     okCount,
			KOSessions:     koCount,
			FoldsRequested: params.Folds,
			FoldsUsed:      foldsUsed,
			CrossValidated: foldsUsed >= 2,
		},
		Table: table,
	}, nil
}

func normalizeParams(params Params) Params {
	if params.Algorithm == "" {
		params.Algorithm = AlgorithmRandomForest
	}
	if params.Trees <= 0 {
		params.Trees = 50
	}
	if params.Folds <= 0 {
		params.Folds = 3
	}
	if params.Seed == 0 {
		params.Seed = 42
	}
	return params
}

func modelFitter(params Params) (func(x [][]float64, y []int) model, error) {
	switch params.Algorithm {
	case AlgorithmRandomForest:
		fp := forestParams{trees: params.Trees, maxDepth: 10, minLeafSize: 1, seed: params.Seed}
		return func(x [][]float64, y []int) model {
			return fitForest(x, y, fp)
		}, nil
	case AlgorithmDecisionTree:
		return func(x [][]float64, y []int) model {
			rows := make([]int, len(x))
			for i := range rows {
				rows[i] = i
			}
			return fitTree(x, y, rows, treeParams{maxDepth: 10, minLeafSize: 1})
		}, nil
	case AlgorithmLogistic:
		return func(x [][]float64, y []int) model {
			return fitLogistic(x, y, defaultLogisticParams())
		}, nil
	default:
		return nil, services.Wrap(services.ErrValidation, "analysis", "analyze",
			fmt.Sprintf("unsupported algorithm %q", params.Algorithm), nil)
	}
}
