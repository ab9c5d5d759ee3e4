package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ironsheep/hough-circles/internal/config"
	"github.com/ironsheep/hough-circles/internal/detection"
	"github.com/ironsheep/hough-circles/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFiles []string

	cmd := &cobra.Command{
		Use:   server.ServerName,
		Short: "MCP server for Hough circle detection",
		Long: `hough-circles finds circles in raster images with the Hough gradient method.

Without a subcommand it runs the MCP server over stdin/stdout; configure it in
your MCP client (e.g., Claude Desktop). Settings come from HOUGH_* environment
variables, optionally preloaded from .env files.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), envFiles)
		},
	}
	cmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files to preload (missing files are skipped)")

	cmd.AddCommand(serveCmd(&envFiles), demoCmd(&envFiles), versionCmd())
	return cmd
}

func serveCmd(envFiles *[]string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *envFiles)
		},
	}
}

func runServe(ctx context.Context, envFiles []string) error {
	cfg, err := config.LoadFiles(envFiles...)
	if err != nil {
		return err
	}
	// stdout is for MCP protocol
	logger := cfg.NewLogger(os.Stderr)
	logger.WithFields(logrus.Fields{
		"version": Version,
		"built":   BuildTime,
		"commit":  GitCommit,
	}).Debug("starting hough-circles MCP server")

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(
		server.WithConfig(cfg),
		server.WithLogger(logger),
		server.WithVersion(Version),
	)
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		logger.WithError(err).Error("server error")
		return err
	}
	return nil
}

type demoOutput struct {
	Expected  []detection.SceneCircle   `json:"expected"`
	Circles   []detection.Circle        `json:"circles"`
	Params    detection.DetectionParams `json:"params"`
	ElapsedMS int64                     `json:"elapsed_ms"`
}

func demoCmd(envFiles *[]string) *cobra.Command {
	var (
		radiusMin, radiusMax, threshold int
		refine                          bool
	)
	demo := detection.DemoParams()

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Detect circles in the built-in demo scene and print them as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// HOUGH_* settings apply on top of the demo parameters, and
			// flags only when given.
			base := config.Default()
			base.Params = demo
			cfg, err := config.LoadFilesWithDefaults(base, *envFiles...)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			params := cfg.Params
			if flags.Changed("radius-min") {
				params.RadiusMin = radiusMin
			}
			if flags.Changed("radius-max") {
				params.RadiusMax = radiusMax
			}
			if flags.Changed("accumulator-threshold") {
				params.AccumulatorThreshold = threshold
			}
			if flags.Changed("refine") {
				cfg.Refine = refine
			}

			opts := append(cfg.DetectorOptions(),
				detection.WithLogger(cfg.NewLogger(os.Stderr)),
			)
			d, err := detection.NewDetector(params, opts...)
			if err != nil {
				return err
			}

			started := time.Now()
			res, err := d.DetectContext(cmd.Context(), detection.DemoScene())
			if err != nil {
				return fmt.Errorf("demo detection failed: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(demoOutput{
				Expected:  detection.DemoCircles,
				Circles:   res.Circles,
				Params:    params,
				ElapsedMS: time.Since(started).Milliseconds(),
			})
		},
	}
	cmd.Flags().IntVar(&radiusMin, "radius-min", demo.RadiusMin, "smallest radius to search (overrides HOUGH_RADIUS_MIN)")
	cmd.Flags().IntVar(&radiusMax, "radius-max", demo.RadiusMax, "largest radius to search (overrides HOUGH_RADIUS_MAX)")
	cmd.Flags().IntVar(&threshold, "accumulator-threshold", demo.AccumulatorThreshold, "minimum votes for a circle (overrides HOUGH_ACCUMULATOR_THRESHOLD)")
	cmd.Flags().BoolVar(&refine, "refine", false, "refine circles with a least-squares fit")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", server.ServerName, Version)
			fmt.Fprintf(out, "  Build time: %s\n", BuildTime)
			fmt.Fprintf(out, "  Git commit: %s\n", GitCommit)
		},
	}
}
