package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"faultscope/internal/router"
)

func newPlotCommand(ctx *commandContext) *cobra.Command {
	var (
		sensor    string
		kind      string
		sessionID string
		label     string
		condition string
		fault     string
		summary   bool
	)

	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Build a chart artifact for one sensor stream",
		Long: `Selects the first session matching the filters (or the named session),
loads the requested stream, and emits a render-ready chart artifact as
JSON. No pixels are produced; any front end can draw the series.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, sensorType, _ := strings.Cut(strings.TrimSpace(sensor), ":")
			if strings.TrimSpace(name) == "" {
				return fmt.Errorf("--sensor is required, as Name or Name:Type")
			}

			chartKind, err := parseChartKind(kind)
			if err != nil {
				return err
			}

			sess, err := ctx.openSession(true, nil)
			if err != nil {
				return err
			}
			defer sess.Close()

			chart, tool, err := sess.orch.BuildChart(&router.VisualParams{
				Kind:        chartKind,
				Target:      router.SensorTarget{Name: strings.TrimSpace(name), Type: strings.TrimSpace(sensorType)},
				SessionID:   strings.TrimSpace(sessionID),
				LabelSubset: strings.TrimSpace(label),
				Condition:   strings.TrimSpace(condition),
				FaultDetail: strings.TrimSpace(fault),
			})
			if err != nil {
				return err
			}

			if summary {
				fmt.Fprintln(cmd.OutOrStdout(), tool)
				return nil
			}
			return writeJSON(cmd, chart)
		},
	}

	cmd.Flags().StringVarP(&sensor, "sensor", "s", "", "Sensor to plot, as Name or Name:Type")
	cmd.Flags().StringVarP(&kind, "kind", "k", "time_series", "Chart kind: time_series or frequency_spectrum")
	cmd.Flags().StringVar(&sessionID, "session", "", "Exact session (folder name or acquisition ID)")
	cmd.Flags().StringVar(&label, "label", "", "Restrict to a condition label (e.g. OK, KO)")
	cmd.Flags().StringVar(&condition, "condition", "", "Restrict to a metadata condition")
	cmd.Flags().StringVar(&fault, "fault", "", "Restrict to a metadata fault detail")
	cmd.Flags().BoolVar(&summary, "summary", false, "Print the statistical summary instead of the chart JSON")
	return cmd
}

func parseChartKind(value string) (router.ChartKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "time_series", "time", "ts":
		return router.ChartTimeSeries, nil
	case "frequency_spectrum", "spectrum", "fft":
		return router.ChartFrequencySpectrum, nil
	default:
		return "", fmt.Errorf("unknown chart kind %q (time_series or frequency_spectrum)", value)
	}
}
