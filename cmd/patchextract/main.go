// cmd/patchextract/main.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/config"
	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/monitoring"
	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/output"
	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/scraper"
	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/utils"
)

// Version information (set by build flags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// rootOptions are the persistent flags shared by every subcommand
type rootOptions struct {
	configFile string
	logLevel   string
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprint(os.Stderr, formatError(err))
		os.Exit(exitCode(err))
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "patchextract",
		Short:         "Extract patch-note announcements from saved listing pages",
		Long:          `Runs the selector-chain extraction engine over local HTML files and prints the results as JSON.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "configuration file (built-in defaults when empty)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override: debug, info, warn, error")

	root.AddCommand(
		newExtractCommand(opts),
		newAnalyzeCommand(opts),
		newStreamCommand(opts),
		newValidateCommand(opts),
		newWatchCommand(opts),
		newVersionCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "patchextract %s (commit %s, built %s)\n", version, gitCommit, buildTime)
		},
	}
}

// loadConfig reads the configuration file, or the defaults without one
func (o *rootOptions) loadConfig() (*config.EngineConfig, error) {
	if o.configFile == "" {
		return config.Default(), nil
	}
	cfg, err := config.LoadFromFile(o.configFile)
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeInvalidConfig, "failed to load configuration")
	}
	return cfg, nil
}

// logger builds the zap-backed logger. The flag wins over the file setting.
// Logs go to stderr so stdout stays valid JSON.
func (o *rootOptions) logger(cfg *config.EngineConfig) (utils.Logger, error) {
	name := o.logLevel
	if name == "" {
		name = cfg.LogLevel
	}
	level, err := utils.ParseLogLevel(name)
	if err != nil {
		return nil, err
	}
	return utils.NewLoggerWithLevel(level), nil
}

// engine loads the configuration and builds an engine observed by metrics
func (o *rootOptions) engine(metrics *monitoring.ExtractionMetrics) (*scraper.Engine, *config.EngineConfig, utils.Logger, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := o.logger(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	engine, err := buildEngine(cfg, logger, metrics)
	if err != nil {
		return nil, nil, nil, err
	}
	return engine, cfg, logger, nil
}

func buildEngine(cfg *config.EngineConfig, logger utils.Logger, metrics *monitoring.ExtractionMetrics) (*scraper.Engine, error) {
	opts := []scraper.Option{scraper.WithLogger(logger)}
	if metrics != nil {
		opts = append(opts, scraper.WithMetricsObserver(metrics))
	}
	engine, err := scraper.NewEngineFromConfig(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction engine: %w", err)
	}
	return engine, nil
}

// readDocument parses a saved page. "-" reads standard input.
func readDocument(cmd *cobra.Command, path string) (*scraper.Document, error) {
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, utils.WrapError(err, utils.ErrCodeInvalidInput, "failed to open page")
		}
		defer f.Close()
		r = f
	}

	doc, err := scraper.NewDocumentFromReader(r)
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeParsingError, "failed to parse page")
	}
	return doc, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	return output.NewJSONWriter(w).Write(v)
}

// outputFlags are shared by the commands that print a report
type outputFlags struct {
	format string
	file   string
}

func (f *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.format, "format", "f", "json", "output format: json, yaml, csv, tsv")
	cmd.Flags().StringVarP(&f.file, "output", "o", "", "write to this file instead of standard output")
}

func (f *outputFlags) write(cmd *cobra.Command, v interface{}) error {
	format, err := output.ParseFormat(f.format)
	if err != nil {
		return utils.WrapError(err, utils.ErrCodeInvalidInput, "bad --format")
	}
	m, err := output.NewManager(output.Config{Format: format, File: f.file}, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	return m.Write(v)
}
