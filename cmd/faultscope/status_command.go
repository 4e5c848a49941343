package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"faultscope/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check configuration, dataset, store, and model endpoint health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			results := preflight.RunAll(cmd.Context(), cfg)

			if jsonOut {
				type checkPayload struct {
					Name   string `json:"name"`
					Passed bool   `json:"passed"`
					Detail string `json:"detail,omitempty"`
				}
				payload := struct {
					Ready  bool           `json:"ready"`
					Checks []checkPayload `json:"checks"`
				}{Ready: preflight.Passed(results)}
				for _, result := range results {
					payload.Checks = append(payload.Checks, checkPayload(result))
				}
				return writeJSON(cmd, payload)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Preflight", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, result := range results {
				kind := statusError
				if result.Passed {
					kind = statusOK
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}

			if !preflight.Passed(results) {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "One or more checks failed; technical requests may degrade or fail.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit check results as JSON")
	return cmd
}
