package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"tabi/internal/driver"
	"tabi/internal/target"
)

var castCmd = &cobra.Command{
	Use:   "cast --from TYPE --to TYPE VALUE",
	Short: "Evaluate a cast of a literal value",
	Long: `Build VALUE as a TYPE on the evaluator, cast it and print the resulting memory
image. Types are written as in unit files; --unit makes the types of a unit
(and its imports) visible`,
	Args: cobra.ExactArgs(1),
	RunE: runCast,
}

var nullCmd = &cobra.Command{
	Use:   "null TYPE",
	Short: "Print the null value of a type",
	Args:  cobra.ExactArgs(1),
	RunE:  runNull,
}

func init() {
	castCmd.Flags().String("from", "", "type of VALUE")
	castCmd.Flags().String("to", "", "destination type")
	castCmd.Flags().Bool("ops", false, "print the evaluator operations")
	_ = castCmd.MarkFlagRequired("from")
	_ = castCmd.MarkFlagRequired("to")

	for _, c := range []*cobra.Command{castCmd, nullCmd} {
		c.Flags().String("unit", "", "unit file whose types are in scope")
	}
	nullCmd.Flags().Bool("ops", false, "print the evaluator operations")
}

// valueUnit returns the unit types resolve in: the --unit file, or a scratch
// unit for the selected target.
func valueUnit(cmd *cobra.Command) (*driver.Unit, error) {
	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return nil, fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	triple := stringSetting(cmd, "target", envTarget)
	path, err := cmd.Flags().GetString("unit")
	if err != nil {
		return nil, fmt.Errorf("failed to get unit flag: %w", err)
	}
	if path != "" {
		u, fs, err := driver.OpenUnit(cmd.Context(), path, driver.Options{Target: triple, MaxDiagnostics: maxDiagnostics})
		if u != nil {
			res := &driver.Result{FileSet: fs, Units: []*driver.UnitResult{{Bag: u.Bag}}}
			printDiagnostics(cmd.ErrOrStderr(), res, false)
		}
		return u, err
	}
	if triple == "" {
		triple = driver.DefaultTriple
	}
	cfg, err := target.Parse(triple)
	if err != nil {
		return nil, err
	}
	return driver.NewUnit(nil, cfg, nil, maxDiagnostics), nil
}

func runCast(cmd *cobra.Command, args []string) error {
	defer dumpTraceOnPanic(cmd.Context(), cmd.ErrOrStderr())

	from, err := cmd.Flags().GetString("from")
	if err != nil {
		return fmt.Errorf("failed to get from flag: %w", err)
	}
	to, err := cmd.Flags().GetString("to")
	if err != nil {
		return fmt.Errorf("failed to get to flag: %w", err)
	}
	u, err := valueUnit(cmd)
	if err != nil {
		return err
	}
	res, err := u.EvalCast(from, to, args[0])
	if err != nil {
		return err
	}
	return printValue(cmd, res)
}

func runNull(cmd *cobra.Command, args []string) error {
	defer dumpTraceOnPanic(cmd.Context(), cmd.ErrOrStderr())

	u, err := valueUnit(cmd)
	if err != nil {
		return err
	}
	res, err := u.EvalNull(args[0])
	if err != nil {
		return err
	}
	return printValue(cmd, res)
}

func printValue(cmd *cobra.Command, res *driver.ValueResult) error {
	showOps, err := cmd.Flags().GetBool("ops")
	if err != nil {
		return fmt.Errorf("failed to get ops flag: %w", err)
	}
	writeValue(cmd.OutOrStdout(), res, showOps)
	return nil
}

func writeValue(w io.Writer, res *driver.ValueResult, showOps bool) {
	fmt.Fprintf(w, "%s = %s\n", unitColor.Sprint(res.Type), symColor.Sprint(res.Text))
	fmt.Fprintf(w, "  native %s\n", res.Native)
	fmt.Fprintf(w, "  bytes  % x\n", res.Bytes)
	if showOps {
		for _, op := range res.Ops {
			fmt.Fprintf(w, "  %s\n", dimColor.Sprint(op))
		}
	}
}
