package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"faultscope/internal/catalog"
)

func newIndexCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index the dataset root and print the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			root := strings.TrimSpace(cfg.Dataset.Root)
			if root == "" {
				return fmt.Errorf("no dataset configured: set [dataset].root in the configuration")
			}

			cat, warnings, err := catalog.Index(root)
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, indexPayload(cat, warnings))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Indexed %d sessions under %s (fingerprint %.12s)\n",
				cat.SessionCount(), cat.Root(), cat.Fingerprint())

			rows := make([][]string, 0, cat.SessionCount())
			for _, label := range cat.Labels() {
				for _, session := range cat.Sessions(label) {
					rows = append(rows, []string{
						label,
						session.ID,
						session.Condition,
						session.FaultDetail,
						fmt.Sprintf("%d", len(session.Streams)),
					})
				}
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Label", "Session", "Condition", "Fault Detail", "Streams"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
			))

			vocab := cat.Vocabulary()
			title := cases.Title(language.English)
			fmt.Fprintf(out, "Sensors:      %s\n", strings.Join(vocab.SensorNames, ", "))
			fmt.Fprintf(out, "Types:        %s\n", strings.Join(vocab.SensorTypes, ", "))
			fmt.Fprintf(out, "Conditions:   %s\n", humanizeList(title, vocab.Conditions))
			fmt.Fprintf(out, "Fault detail: %s\n", humanizeList(title, vocab.FaultDetails))

			if len(warnings) > 0 {
				fmt.Fprintf(out, "\n%d warning(s):\n", len(warnings))
				for _, warning := range warnings {
					fmt.Fprintf(out, "  - %s\n", warning)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the catalog as JSON")
	return cmd
}

// humanizeList title-cases metadata values for display; raw values in
// metadata.json are frequently lowercase or underscore-separated.
func humanizeList(title cases.Caser, values []string) string {
	if len(values) == 0 {
		return "(none)"
	}
	display := make([]string, 0, len(values))
	for _, value := range values {
		display = append(display, title.String(strings.ReplaceAll(value, "_", " ")))
	}
	return strings.Join(display, ", ")
}

type indexedSession struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Condition   string `json:"condition,omitempty"`
	FaultDetail string `json:"fault_detail,omitempty"`
	Streams     int    `json:"streams"`
}

type indexResult struct {
	Root         string           `json:"root"`
	Fingerprint  string           `json:"fingerprint"`
	Sessions     []indexedSession `json:"sessions"`
	SensorNames  []string         `json:"sensor_names"`
	SensorTypes  []string         `json:"sensor_types"`
	Conditions   []string         `json:"conditions"`
	FaultDetails []string         `json:"fault_details"`
	Warnings     []string         `json:"warnings,omitempty"`
}

func indexPayload(cat *catalog.Catalog, warnings []catalog.Warning) indexResult {
	payload := indexResult{
		Root:         cat.Root(),
		Fingerprint:  cat.Fingerprint(),
		SensorNames:  cat.Vocabulary().SensorNames,
		SensorTypes:  cat.Vocabulary().SensorTypes,
		Conditions:   cat.Vocabulary().Conditions,
		FaultDetails: cat.Vocabulary().FaultDetails,
	}
	for _, label := range cat.Labels() {
		for _, session := range cat.Sessions(label) {
			payload.Sessions = append(payload.Sessions, indexedSession{
				ID:          session.ID,
				Label:       label,
				Condition:   session.Condition,
				FaultDetail: session.FaultDetail,
				Streams:     len(session.Streams),
			})
		}
	}
	for _, warning := range warnings {
		payload.Warnings = append(payload.Warnings, warning.String())
	}
	return payload
}
