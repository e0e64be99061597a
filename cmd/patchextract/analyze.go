// cmd/patchextract/analyze.go
package main

import (
	"github.com/spf13/cobra"

	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/scraper"
)

func newAnalyzeCommand(root *rootOptions) *cobra.Command {
	var only []string
	var out outputFlags
	cmd := &cobra.Command{
		Use:   "analyze <page.html>",
		Short: "Analyze the visible text of a saved page",
		Long: `Reports word and element counts, top keywords, a language guess and a
readability score for the page. Parts can be disabled in the configuration
or narrowed with --only.`,
		Example: `  patchextract analyze page.html
  patchextract analyze --only keywords,language page.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, cfg, _, err := root.engine(nil)
			if err != nil {
				return err
			}
			doc, err := readDocument(cmd, args[0])
			if err != nil {
				return err
			}

			opts := scraper.AnalysisOptionsFromConfig(cfg.Analysis)
			if len(only) > 0 {
				opts = analysisSubset(only)
			}
			analysis, err := engine.Analyze(doc, opts)
			if err != nil {
				return err
			}
			return out.write(cmd, analysis)
		},
	}

	cmd.Flags().StringSliceVar(&only, "only", nil, "run only these parts: counts, keywords, language, readability")
	out.register(cmd)
	return cmd
}

// analysisSubset enables the named parts; unknown names are ignored
func analysisSubset(parts []string) scraper.AnalysisOptions {
	var opts scraper.AnalysisOptions
	for _, part := range parts {
		switch part {
		case "counts":
			opts.Counts = true
		case "keywords":
			opts.Keywords = true
		case "language":
			opts.Language = true
		case "readability":
			opts.Readability = true
		}
	}
	return opts
}
