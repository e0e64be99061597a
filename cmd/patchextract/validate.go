// cmd/patchextract/validate.go
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/config"
	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/scraper"
	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/utils"
)

func newValidateCommand(root *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "validate [config.yaml]",
		Short: "Check a configuration file and report every problem",
		Long: `Parses the configuration, reports all validation errors and warnings,
and compiles the declared patterns. Without an argument the --config file is
checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := root.configFile
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return utils.NewError(utils.ErrCodeMissingConfig, "no configuration file given").Build()
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return utils.WrapError(err, utils.ErrCodeMissingConfig, "failed to read configuration")
			}
			cfg, err := config.Parse(data)
			if err != nil {
				return utils.WrapError(err, utils.ErrCodeInvalidConfig, "failed to parse configuration")
			}

			result := cfg.ValidateWithDetails()
			if result.Valid {
				// compile the strategies the way extract does
				if _, err := scraper.PatternSpecsFromConfig(cmd.Context(), cfg.Patterns); err != nil {
					addPatternErrors(result, err)
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				if err := writeJSON(out, result); err != nil {
					return err
				}
			} else {
				printValidation(cmd, path, result)
			}

			if !result.Valid {
				return utils.NewError(utils.ErrCodeInvalidConfig,
					fmt.Sprintf("%s: %d validation error(s)", path, len(result.Errors))).Build()
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

// addPatternErrors reports one entry per pattern that failed to compile
func addPatternErrors(result *config.ValidationResult, err error) {
	var multi *utils.MultiError
	if !errors.As(err, &multi) {
		result.AddError("patterns", "", err.Error(), string(utils.CodeOf(err)))
		return
	}
	for _, pe := range multi.Errors() {
		field := "patterns"
		if i, ok := pe.Context["index"].(int); ok {
			field = fmt.Sprintf("patterns[%d]", i)
		}
		msg := pe.Message
		if pe.Cause != nil {
			msg += ": " + pe.Cause.Error()
		}
		result.AddError(field, "", msg, string(pe.Code))
	}
}

func printValidation(cmd *cobra.Command, path string, result *config.ValidationResult) {
	out := cmd.OutOrStdout()
	for _, e := range result.Errors {
		line := e.Message
		if e.Field != "" {
			line = e.Field + ": " + line
		}
		if e.Value != "" {
			line += fmt.Sprintf(" (value %q)", e.Value)
		}
		fmt.Fprintf(out, "error: %s\n", line)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	if result.Valid {
		fmt.Fprintf(out, "%s: configuration is valid\n", path)
	}
}
