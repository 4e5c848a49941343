package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// writeJSON renders a --json payload to the command's stdout, indented
// so catalog and analysis output stays readable without piping through
// a formatter.
func writeJSON(cmd *cobra.Command, payload any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}
