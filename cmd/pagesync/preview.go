package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-pagesync/cmd/pagesync/internal/bootstrap"
	"github.com/goliatone/go-pagesync/internal/manifest"
)

// NewPreviewCmd creates the preview command.
func NewPreviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview <file-or-url>",
		Short: "Render a Markdown source the way sync would publish it",
		Long: `Preview fetches one Markdown source, splits the title from the body and
prints the HTML that sync would send to WordPress. Only the markdown section
of the config is used; credentials are not required.`,
		Args: cobra.ExactArgs(1),
		RunE: runPreviewCmd,
	}
	cmd.Flags().Bool("body-only", false, "Print only the rendered body")
	return cmd
}

func runPreviewCmd(cmd *cobra.Command, args []string) error {
	cfg, err := bootstrap.LoadConfig(persistentString(cmd, "config"))
	if err != nil {
		return err
	}
	bodyOnly, err := cmd.Flags().GetBool("body-only")
	if err != nil {
		return err
	}

	fetcher := manifest.NewFetcher(manifest.WithTimeout(cfg.Timeout.Duration))
	data, err := fetcher.Fetch(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	split := bootstrap.NewConverter(cfg, nil).SplitTitleAndContent(string(data))
	out := cmd.OutOrStdout()
	if !bodyOnly {
		fmt.Fprintf(out, "title: %s\n", split.Title)
		if split.Meta.Slug != "" {
			fmt.Fprintf(out, "front matter slug: %s\n", split.Meta.Slug)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprint(out, split.Content)
	return nil
}
