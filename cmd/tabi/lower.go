package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"tabi/internal/driver"
	"tabi/internal/project"
)

var lowerCmd = &cobra.Command{
	Use:   "lower [flags] [unit.toml|directory]...",
	Short: "Lower every declaration of the given units",
	Long: `Load unit files, order them by their imports and lower every extern function
to the native calling convention. Directories are searched recursively for
*.toml files; without arguments the current directory is used`,
	RunE: runLower,
}

func init() {
	lowerCmd.Flags().Int("jobs", 0, "max parallel workers (0=auto, env TABI_JOBS)")
	lowerCmd.Flags().String("ui", "auto", "progress view (auto|on|off, env TABI_UI)")
	lowerCmd.Flags().String("format", "pretty", "output format (pretty|json)")
	lowerCmd.Flags().Bool("no-cache", false, "do not read or write the disk cache (env TABI_NO_CACHE)")
	lowerCmd.Flags().String("cache-dir", "", "disk cache location (env TABI_CACHE_DIR)")
	lowerCmd.Flags().Bool("with-notes", false, "include diagnostic notes in output")
}

type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func openCache(cmd *cobra.Command) (*driver.DiskCache, error) {
	noCache, err := boolSetting(cmd, "no-cache", envNoCache)
	if err != nil {
		return nil, err
	}
	if noCache {
		return nil, nil
	}
	if dir := stringSetting(cmd, "cache-dir", envCacheDir); dir != "" {
		return driver.OpenDiskCacheAt(dir)
	}
	return driver.OpenDiskCache("tabi")
}

// runLower executes the "lower" command. Error diagnostics make it exit
// with status 2 after everything has been printed.
func runLower(cmd *cobra.Command, args []string) error {
	defer dumpTraceOnPanic(cmd.Context(), cmd.ErrOrStderr())

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	format = strings.ToLower(format)
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}
	withNotes, err := cmd.Flags().GetBool("with-notes")
	if err != nil {
		return fmt.Errorf("failed to get with-notes flag: %w", err)
	}
	jobs, err := intSetting(cmd, "jobs", envJobs)
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}
	mode, err := readUIMode(stringSetting(cmd, "ui", envUI))
	if err != nil {
		return err
	}
	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	timings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}
	traceOut, err := cmd.Root().PersistentFlags().GetString("trace")
	if err != nil {
		return fmt.Errorf("failed to get trace flag: %w", err)
	}

	cache, err := openCache(cmd)
	if err != nil {
		// кэш необязателен
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: disk cache disabled: %v\n", err)
		cache = nil
	}

	opts := driver.Options{
		Target:         stringSetting(cmd, "target", envTarget),
		Jobs:           jobs,
		MaxDiagnostics: maxDiagnostics,
		Cache:          cache,
		Timings:        timings,
	}

	files, err := project.FindUnitFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no unit files found")
	}

	var res *driver.Result
	tracingToStderr := traceOut == "-"
	if format == "pretty" && shouldUseTUI(mode, len(files), tracingToStderr) {
		res, err = runLowerWithUI(cmd.Context(), "lowering units", files, args, opts)
	} else {
		res, err = driver.Lower(cmd.Context(), args, opts)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		if err := renderLowerJSON(out, res); err != nil {
			return err
		}
	default:
		renderLowerPretty(out, res)
	}
	printDiagnostics(cmd.ErrOrStderr(), res, withNotes)
	if timings {
		printTimings(cmd.ErrOrStderr(), res)
	}

	broken := 0
	for _, u := range res.Units {
		if u.Broken {
			broken++
		}
	}
	if !quiet && format == "pretty" {
		printSummary(out, len(res.Units), res.Cached(), broken)
	}
	if broken > 0 {
		return &exitError{code: 2, msg: fmt.Sprintf("%d of %d units failed", broken, len(res.Units))}
	}
	return nil
}

type lowerJSON struct {
	Units []unitJSON `json:"units"`
}

type unitJSON struct {
	Name   string              `json:"name"`
	Path   string              `json:"path"`
	Target string              `json:"target,omitempty"`
	Hash   string              `json:"hash,omitempty"`
	Cached bool                `json:"cached"`
	Broken bool                `json:"broken"`
	Funcs  []driver.FuncResult `json:"funcs"`
	Vars   []driver.VarResult  `json:"vars"`
}

func renderLowerJSON(w io.Writer, res *driver.Result) error {
	payload := lowerJSON{Units: make([]unitJSON, 0, len(res.Units))}
	for _, u := range res.Units {
		j := unitJSON{
			Name:   u.Name,
			Path:   u.Path,
			Target: u.Target,
			Cached: u.Cached,
			Broken: u.Broken,
			Funcs:  u.Funcs,
			Vars:   u.Vars,
		}
		if !u.Hash.IsZero() {
			j.Hash = u.Hash.String()
		}
		payload.Units = append(payload.Units, j)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
