package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/port-research/internal/research"
)

var researchOutPath string

var researchCmd = &cobra.Command{
	Use:   "research <facility-id>",
	Short: "Run the research pipeline for one facility and print the preview",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		sink := &consoleSink{out: cmd.OutOrStdout()}
		e.Runner.Run(ctx, args[0], research.RunOptions{}, sink)

		if sink.err != nil {
			return eris.Errorf("%s: %s", sink.err.Category, sink.err.Message)
		}
		if sink.preview == nil {
			return eris.New("run ended without a preview")
		}

		data, err := json.MarshalIndent(sink.preview, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal preview")
		}
		if researchOutPath != "" {
			if err := os.WriteFile(researchOutPath, data, 0o644); err != nil {
				return eris.Wrap(err, "write preview")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "preview written to %s\n", researchOutPath)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

// consoleSink prints run progress to the terminal and captures the terminal
// event for the command to act on.
type consoleSink struct {
	out     io.Writer
	preview *research.Preview
	err     *research.Error
}

func (c *consoleSink) Status(step research.Step, message string, progress int) {
	fmt.Fprintf(c.out, "[%3d%%] %-18s %s\n", progress, step, message)
}

func (c *consoleSink) Preview(p research.Preview) {
	c.preview = &p
}

func (c *consoleSink) Error(e *research.Error) {
	c.err = e
}

func (c *consoleSink) Warning(e *research.Error) {
	fmt.Fprintf(c.out, "warning: %s: %s\n", e.Category, e.Message)
}

func init() {
	researchCmd.Flags().StringVarP(&researchOutPath, "out", "o", "", "Write the preview JSON to a file instead of stdout")
	rootCmd.AddCommand(researchCmd)
}
