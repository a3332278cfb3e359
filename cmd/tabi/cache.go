package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the disk cache",
}

var cacheDirCmd = &cobra.Command{
	Use:   "dir",
	Short: "Print the cache location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCache(cmd)
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("disk cache is disabled")
		}
		fmt.Fprintln(cmd.OutOrStdout(), c.Dir())
		return nil
	},
}

var cacheCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Drop every cached unit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCache(cmd)
		if err != nil {
			return err
		}
		if c == nil {
			return nil
		}
		if err := c.DropAll(); err != nil {
			return fmt.Errorf("failed to clean %s: %w", c.Dir(), err)
		}
		quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet")
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "cleaned %s\n", c.Dir())
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{cacheDirCmd, cacheCleanCmd} {
		c.Flags().Bool("no-cache", false, "treat the cache as disabled (env TABI_NO_CACHE)")
		c.Flags().String("cache-dir", "", "disk cache location (env TABI_CACHE_DIR)")
		cacheCmd.AddCommand(c)
	}
}
