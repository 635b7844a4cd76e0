// Package main provides the sonido-smooth CLI entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-smooth/algorithms/stats"
	"github.com/RyanBlaney/sonido-smooth/logging"
	"github.com/RyanBlaney/sonido-smooth/server"
	"github.com/RyanBlaney/sonido-smooth/smoothing"
	"github.com/RyanBlaney/sonido-smooth/smoothing/config"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sonido-smooth",
		Short: "Edge-preserving smoothing for per-frame expression coefficients",
		Long: `sonido-smooth applies a one-dimensional bilateral filter along the time
axis of coefficient sequences (frames x channels) before animation playback.

Sequences are read and written as JSON, YAML, CSV or raw little-endian float64.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", os.Getenv("SONIDO_CONFIG"), "YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level override: debug, info, warn, error")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sonido-smooth v%s (%s)\n", version, commit)
		},
	})

	filterCmd := &cobra.Command{
		Use:   "filter",
		Short: "Smooth a coefficient sequence file",
		RunE:  runFilter,
	}
	addFilterFlags(filterCmd)
	filterCmd.Flags().String("in", "", "Input sequence file")
	filterCmd.Flags().String("out", "", "Output sequence file (format from extension)")
	filterCmd.Flags().Bool("report", false, "Print a smoothing report as YAML")
	_ = filterCmd.MarkFlagRequired("in")
	rootCmd.AddCommand(filterCmd)

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Report how smoothing would change a sequence without writing it",
		RunE:  runReport,
	}
	addFilterFlags(reportCmd)
	reportCmd.Flags().String("in", "", "Input sequence file")
	_ = reportCmd.MarkFlagRequired("in")
	rootCmd.AddCommand(reportCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP smoothing service",
		RunE:  runServe,
	}
	addFilterFlags(serveCmd)
	serveCmd.Flags().String("address", "", "Listen address (overrides server.address)")
	rootCmd.AddCommand(serveCmd)

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			data, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	addFilterFlags(configCmd)
	rootCmd.AddCommand(configCmd)

	return rootCmd
}

func addFilterFlags(cmd *cobra.Command) {
	defaults := config.DefaultConfig().Filter
	cmd.Flags().Float64("factor", defaults.Factor, "Exponent multiplier, must be negative")
	cmd.Flags().Float64("distance-sigma", defaults.DistanceSigma, "Temporal decay scale in frames")
	cmd.Flags().Float64("range-sigma", defaults.RangeSigma, "Value-difference decay scale")
	cmd.Flags().Int("radius", defaults.Radius, "Half window width in frames")
	cmd.Flags().Int("workers", defaults.Workers, "Goroutines used per sequence")
}

// loadConfig reads the config file and environment, then applies any flags
// the user set explicitly
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("factor") {
		cfg.Filter.Factor, _ = flags.GetFloat64("factor")
	}
	if flags.Changed("distance-sigma") {
		cfg.Filter.DistanceSigma, _ = flags.GetFloat64("distance-sigma")
	}
	if flags.Changed("range-sigma") {
		cfg.Filter.RangeSigma, _ = flags.GetFloat64("range-sigma")
	}
	if flags.Changed("radius") {
		cfg.Filter.Radius, _ = flags.GetInt("radius")
	}
	if flags.Changed("workers") {
		cfg.Filter.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	if flags.Lookup("address") != nil && flags.Changed("address") {
		cfg.Server.Address, _ = flags.GetString("address")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup loads configuration, installs the global logger and builds a smoother
func setup(cmd *cobra.Command) (*smoothing.Smoother, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	opts, err := cfg.LoggerOptions()
	if err != nil {
		return nil, nil, err
	}
	opts.Output = cmd.ErrOrStderr()
	logger := logging.NewLogger(opts)
	logging.SetGlobalLogger(logger)

	smoother, err := smoothing.NewSmoother(cfg)
	if err != nil {
		logger.Close()
		return nil, nil, err
	}
	return smoother, func() { logger.Close() }, nil
}

func runFilter(cmd *cobra.Command, args []string) error {
	smoother, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	in, _ := cmd.Flags().GetString("in")
	out, _ := cmd.Flags().GetString("out")
	withReport, _ := cmd.Flags().GetBool("report")

	seq, err := smoother.LoadSignal(in)
	if err != nil {
		return err
	}

	result, err := smoother.SmoothWith(contextOf(cmd), nil, seq, withReport)
	if err != nil {
		return err
	}

	if out != "" {
		if err := smoother.SaveSignal(out, result.Signal); err != nil {
			return err
		}
	}

	if result.Report != nil {
		return printReport(cmd.OutOrStdout(), result.Report)
	}
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	smoother, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	in, _ := cmd.Flags().GetString("in")
	seq, err := smoother.LoadSignal(in)
	if err != nil {
		return err
	}

	result, err := smoother.SmoothWith(contextOf(cmd), nil, seq, true)
	if err != nil {
		return err
	}
	return printReport(cmd.OutOrStdout(), result.Report)
}

func runServe(cmd *cobra.Command, args []string) error {
	smoother, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(smoother).Run(ctx)
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func printReport(w io.Writer, report *stats.SmoothingReport) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return err
	}
	return enc.Close()
}
