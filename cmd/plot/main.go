// Package main provides the plot CLI, which renders one flot series source to an image file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/aaronlmathis/powerplot/internal/chart"
	"github.com/aaronlmathis/powerplot/internal/logging"
	"github.com/aaronlmathis/powerplot/internal/plot"
	"github.com/aaronlmathis/powerplot/internal/surface"
	"github.com/aaronlmathis/powerplot/internal/version"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type options struct {
	outputPath string
	format     string
	title      string
	width      int
	height     int
	timeout    time.Duration
	verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "plot <url>",
		Short: "Render a flot series source to an image",
		Long: `plot fetches a flot-format JSON series from a URL and renders it
as a line chart with fixed display options (thin unfilled lines, time
x-axis, two-column legend).`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, args[0])
		},
	}

	rootCmd.Flags().StringVarP(&opts.outputPath, "output", "o", "chart.png", "Output file path")
	rootCmd.Flags().StringVar(&opts.format, "format", "", "Image format: png or svg (default: from output extension)")
	rootCmd.Flags().StringVar(&opts.title, "title", "", "Chart title")
	rootCmd.Flags().IntVar(&opts.width, "width", chart.DefaultConfig().Width, "Image width in pixels")
	rootCmd.Flags().IntVar(&opts.height, "height", chart.DefaultConfig().Height, "Image height in pixels")
	rootCmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Fetch timeout (0 for none)")
	rootCmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
		},
	})

	return rootCmd
}

func run(ctx context.Context, opts *options, source string) error {
	format, err := resolveFormat(opts.format, opts.outputPath)
	if err != nil {
		return err
	}
	if opts.width <= 0 || opts.height <= 0 {
		return fmt.Errorf("width and height must be positive")
	}

	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	logger, err := logging.NewLogger(level, "console", "")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	renderer := chart.NewRenderer(logger.Named("chart"), chart.Config{
		Width:  opts.width,
		Height: opts.height,
		Format: format,
		Title:  opts.title,
	})
	plotter := plot.New(logger.Named("plot"), renderer, plot.WithTimeout(opts.timeout))

	target := surface.NewFile(opts.outputPath)
	result := <-plotter.RenderContext(ctx, source, target)
	if !result.OK() {
		return fmt.Errorf("%s: %w", result.Outcome, result.Err)
	}

	logger.Info("Chart written",
		zap.String("path", target.Path()),
		zap.Duration("duration", result.Duration))
	return nil
}

// resolveFormat picks the image format from the flag or the output file extension
func resolveFormat(flag, outputPath string) (chart.Format, error) {
	if flag == "" {
		switch strings.ToLower(filepath.Ext(outputPath)) {
		case ".svg":
			return chart.SVG, nil
		default:
			return chart.PNG, nil
		}
	}

	switch f := chart.Format(strings.ToLower(flag)); f {
	case chart.PNG, chart.SVG:
		return f, nil
	default:
		return "", fmt.Errorf("invalid format: %s (must be png or svg)", flag)
	}
}
