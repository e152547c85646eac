package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"comicinsights/pkg/config"
	"comicinsights/pkg/styles"
)

func stylesCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "styles",
		Short: "List the configured styles and aspect ratios",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			presets, err := styles.Load(cfg.Styles.Config, cfg.Styles.CustomCSV)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "styles: %s\n", strings.Join(presets.StyleNames(), ", "))
			if custom := presets.CustomStyleNames(); len(custom) > 0 {
				fmt.Fprintf(out, "custom styles: %s\n", strings.Join(custom, ", "))
			}
			fmt.Fprintf(out, "aspect ratios: %s\n", strings.Join(presets.AspectRatioNames(), ", "))
			if emb := presets.NegativeEmbedding(); emb != "" {
				fmt.Fprintf(out, "negative embedding: %s\n", emb)
			}
			return nil
		},
	}
}
