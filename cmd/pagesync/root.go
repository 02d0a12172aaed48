package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-pagesync/cmd/pagesync/internal/bootstrap"
)

var moduleBuilder = bootstrap.BuildModule

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pagesync",
		Short: "Publish Markdown documents as WordPress pages",
		Long: `pagesync reads a manifest of Markdown documents, renders each one to HTML
and creates or updates the matching WordPress page through the REST API.
A content fingerprint is kept per source so unchanged documents are skipped
on the next run.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Config file path (JSON or YAML)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(NewSyncCmd())
	cmd.AddCommand(NewPreviewCmd())
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func persistentString(cmd *cobra.Command, name string) string {
	value, err := cmd.Flags().GetString(name)
	if err != nil {
		value, _ = cmd.Root().PersistentFlags().GetString(name)
	}
	return value
}

func persistentBool(cmd *cobra.Command, name string) bool {
	value, err := cmd.Flags().GetBool(name)
	if err != nil {
		value, _ = cmd.Root().PersistentFlags().GetBool(name)
	}
	return value
}
