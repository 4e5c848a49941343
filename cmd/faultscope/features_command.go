package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"faultscope/internal/features"
)

func newFeaturesCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var refresh bool

	cmd := &cobra.Command{
		Use:   "features",
		Short: "Extract feature vectors for every indexed stream",
		Long: `Loads every sensor stream in the catalog, computes the fixed time- and
frequency-domain feature set, and caches the vectors in the feature store
keyed by the catalog fingerprint. Later analyses reuse the cache.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := ctx.openSession(true, nil)
			if err != nil {
				return err
			}
			defer sess.Close()

			if refresh {
				if _, err := sess.store.ClearVectors(cmd.Context()); err != nil {
					return fmt.Errorf("clear feature cache: %w", err)
				}
			}

			vectors, err := sess.orch.ExtractFeatures(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, vectors)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d feature vectors for fingerprint %.12s\n",
				len(vectors), sess.catalog.Fingerprint())

			headers := []string{"Session", "Label", "Sensor", "Type"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft}
			for _, name := range features.Names() {
				headers = append(headers, name)
				aligns = append(aligns, alignRight)
			}

			rows := make([][]string, 0, len(vectors))
			for _, vector := range vectors {
				row := []string{vector.SessionID, vector.Label, vector.SensorName, vector.SensorType}
				for _, name := range features.Names() {
					value, _ := vector.Value(name)
					row = append(row, fmt.Sprintf("%.4g", value))
				}
				rows = append(rows, row)
			}
			fmt.Fprintln(out, renderTable(headers, rows, aligns))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the vectors as JSON")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Discard the cached vectors and re-extract")
	return cmd
}
