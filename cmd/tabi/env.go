package main

import (
	"github.com/spf13/cobra"
	"github.com/xyproto/env/v2"
)

// Переменные окружения перекрывают значения по умолчанию, но не флаги,
// заданные явно.
const (
	envTarget   = "TABI_TARGET"
	envJobs     = "TABI_JOBS"
	envCacheDir = "TABI_CACHE_DIR"
	envNoCache  = "TABI_NO_CACHE"
	envUI       = "TABI_UI"
)

// stringSetting returns the flag value unless the flag was left at its
// default and the variable is set.
func stringSetting(cmd *cobra.Command, flag, variable string) string {
	f := cmd.Flags().Lookup(flag)
	if f == nil {
		f = cmd.Root().PersistentFlags().Lookup(flag)
	}
	if f == nil {
		return env.Str(variable)
	}
	if !f.Changed && env.Has(variable) {
		return env.Str(variable)
	}
	return f.Value.String()
}

func intSetting(cmd *cobra.Command, flag, variable string) (int, error) {
	v, err := cmd.Flags().GetInt(flag)
	if err != nil {
		return 0, err
	}
	if !cmd.Flags().Changed(flag) && env.Has(variable) {
		return env.Int(variable, v), nil
	}
	return v, nil
}

func boolSetting(cmd *cobra.Command, flag, variable string) (bool, error) {
	v, err := cmd.Flags().GetBool(flag)
	if err != nil {
		return false, err
	}
	if !cmd.Flags().Changed(flag) && env.Has(variable) {
		return env.Bool(variable), nil
	}
	return v, nil
}
