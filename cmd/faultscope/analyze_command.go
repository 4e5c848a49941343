package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"faultscope/internal/analysis"
	"faultscope/internal/narrator"
	"faultscope/internal/router"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var algorithm string
	var sensors []string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run a feature importance analysis without the language model",
		Long: `Extracts (or reuses cached) features for every indexed session and ranks
(feature, sensor) pairs by how well they separate the OK and KO classes.
Accuracy values are indicative cross-validation scores over small datasets,
not a certified model evaluation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := ctx.openSession(true, nil)
			if err != nil {
				return err
			}
			defer sess.Close()

			targets, err := parseSensorTargets(sensors)
			if err != nil {
				return err
			}

			result, err := sess.orch.RunAnalysis(cmd.Context(), algorithm, targets)
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, analyzePayload(result))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, narrator.ReportText(result))
			return nil
		},
	}

	cmd.Flags().StringVarP(&algorithm, "algorithm", "a", "", "Classifier: rf, dt, or lr (config default when empty)")
	cmd.Flags().StringArrayVarP(&sensors, "sensor", "s", nil, "Restrict to sensor, as Name or Name:Type (repeatable)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the ranking as JSON")
	return cmd
}

// parseSensorTargets converts Name or Name:Type flags into router
// targets, the same shape the intent router extracts from free text.
func parseSensorTargets(specs []string) ([]router.SensorTarget, error) {
	targets := make([]router.SensorTarget, 0, len(specs))
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		name, sensorType, found := strings.Cut(spec, ":")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("invalid sensor spec %q", spec)
		}
		target := router.SensorTarget{Name: name}
		if found {
			target.Type = strings.TrimSpace(sensorType)
		}
		targets = append(targets, target)
	}
	return targets, nil
}

type rankedFeaturePayload struct {
	Feature     string  `json:"feature"`
	Sensor      string  `json:"sensor"`
	Importance  float64 `json:"importance"`
	Accuracy    float64 `json:"sensor_accuracy"`
	GlobalScore float64 `json:"global_score"`
}

type sensorScorePayload struct {
	Sensor   string  `json:"sensor"`
	Accuracy float64 `json:"accuracy"`
}

type analyzeResult struct {
	Algorithm      string                 `json:"algorithm"`
	Sessions       int                    `json:"sessions"`
	OKSessions     int                    `json:"ok_sessions"`
	KOSessions     int                    `json:"ko_sessions"`
	FoldsUsed      int                    `json:"folds_used"`
	CrossValidated bool                   `json:"cross_validated"`
	Ranking        []rankedFeaturePayload `json:"ranking"`
	SensorScores   []sensorScorePayload   `json:"sensor_scores"`
}

func analyzePayload(result *analysis.Result) analyzeResult {
	payload := analyzeResult{
		Algorithm:      result.Diagnostics.Algorithm,
		Sessions:       result.Diagnostics.Sessions,
		OKSessions:     result.Diagnostics.OKSessions,
		KOSessions:     result.Diagnostics.KOSessions,
		FoldsUsed:      result.Diagnostics.FoldsUsed,
		CrossValidated: result.Diagnostics.CrossValidated,
	}
	for _, entry := range result.Ranking {
		payload.Ranking = append(payload.Ranking, rankedFeaturePayload{
			Feature:     entry.Feature,
			Sensor:      entry.Sensor,
			Importance:  entry.Importance,
			Accuracy:    entry.Accuracy,
			GlobalScore: entry.GlobalScore,
		})
	}
	for _, score := range result.SensorScores {
		payload.SensorScores = append(payload.SensorScores, sensorScorePayload{
			Sensor:   score.Sensor,
			Accuracy: score.Accuracy,
		})
	}
	return payload
}
