package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

func rootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "comicinsights",
		Short: "Comic Insights drafts comic-book scenes with local AI services",
		Long: `Comic Insights is a single-user authoring tool: it turns a story prompt
into a narrative summary, extracts a character roster, and generates styled
comic-panel artwork through a Stable Diffusion HTTP API.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "comicinsights.toml", "path to the TOML config file")

	root.AddCommand(serveCommand(&configPath))
	root.AddCommand(stylesCommand(&configPath))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "comicinsights", version)
		},
	})

	return root
}
