package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/port-research/internal/research"
)

var (
	applyPreviewPath string
	applyFields      []string
)

var applyCmd = &cobra.Command{
	Use:   "apply <facility-id>",
	Short: "Apply approved fields from a saved preview to the record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(applyPreviewPath)
		if err != nil {
			return eris.Wrap(err, "read preview")
		}
		var preview research.Preview
		if err := json.Unmarshal(data, &preview); err != nil {
			return eris.Wrap(err, "parse preview")
		}

		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		facility, err := research.Apply(cmd.Context(), e.Store, args[0], preview.UpdatePayload, applyFields)
		if err != nil {
			return eris.Wrap(err, "apply")
		}

		out, err := json.MarshalIndent(facility, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal facility")
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	applyCmd.Flags().StringVarP(&applyPreviewPath, "preview", "p", "", "Path to the preview JSON produced by the research command")
	applyCmd.Flags().StringSliceVarP(&applyFields, "fields", "f", nil, "Approved field names to write")
	_ = applyCmd.MarkFlagRequired("preview")
	rootCmd.AddCommand(applyCmd)
}
