package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-pagesync/internal/runtimeconfig"
)

// NewConfigCmd creates the config command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect pagesync configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate the config file and print the effective settings",
		Args:  cobra.NoArgs,
		RunE:  runConfigCheckCmd,
	})
	return cmd
}

func runConfigCheckCmd(cmd *cobra.Command, _ []string) error {
	path := persistentString(cmd, "config")
	if path == "" {
		return fmt.Errorf("config check: --config is required")
	}
	cfg, err := runtimeconfig.Load(path)
	if err != nil {
		return err
	}
	encoded, err := json.MarshalIndent(cfg.Redacted(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
	return nil
}
