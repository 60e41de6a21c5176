// Package main provides the entry point for the Meridian geodesy service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jobrunner/meridian/internal/app"
	"github.com/jobrunner/meridian/internal/application"
	"github.com/jobrunner/meridian/internal/config"
	"github.com/jobrunner/meridian/internal/domain"
	"github.com/jobrunner/meridian/internal/ports/input"
	"github.com/jobrunner/meridian/internal/ports/output"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var cfgFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "meridian",
		Short: "Meridian - geodesy and shape query service",
		Long: `Meridian computes geodesics on reference ellipsoids and answers
spatial queries against shapefile layers.

Features:
  - Vincenty and Karney inverse/direct solutions, distance matrices, areas
  - Intersection of two bearings
  - Point and geometry queries over indexed shapefiles
  - Multiple storage backends (local, AWS S3, Azure, HTTP)
  - Hot-reload of shapefiles
  - Simulated NMEA receiver streamed over websockets
  - TLS with automatic certificate management
  - Prometheus metrics`,
		SilenceUsage: true,
		RunE:         runServer,
	}

	cobra.OnInitialize(initConfig)

	// Global flags
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "json", "log format (json, text)")
	root.PersistentFlags().String("ellipsoid", "WGS84", "reference ellipsoid")

	// Server flags
	root.Flags().String("host", "0.0.0.0", "server host")
	root.Flags().Int("port", 8080, "server port")
	root.Flags().Bool("tls", false, "enable TLS")
	root.Flags().StringSlice("tls-domains", nil, "TLS domains")
	root.Flags().String("tls-email", "", "TLS email for Let's Encrypt")
	root.Flags().StringSlice("cors", nil, "allowed CORS origins (e.g., https://example.com,*.sub.domain.tld)")

	// Storage flags
	root.Flags().String("storage-type", "local", "storage type (local, s3, azure, http)")
	root.Flags().String("storage-path", "./data", "local storage path")
	root.Flags().String("index-path", "", "shape index database (default: in memory)")

	// Emulator flags
	root.Flags().Bool("emulator", false, "enable the NMEA emulator")

	// Bind flags to viper
	_ = viper.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", root.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("geodesy.ellipsoid", root.PersistentFlags().Lookup("ellipsoid"))
	_ = viper.BindPFlag("server.host", root.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", root.Flags().Lookup("port"))
	_ = viper.BindPFlag("tls.enabled", root.Flags().Lookup("tls"))
	_ = viper.BindPFlag("tls.domains", root.Flags().Lookup("tls-domains"))
	_ = viper.BindPFlag("tls.email", root.Flags().Lookup("tls-email"))
	_ = viper.BindPFlag("server.cors.allowed_origins", root.Flags().Lookup("cors"))
	_ = viper.BindPFlag("storage.type", root.Flags().Lookup("storage-type"))
	_ = viper.BindPFlag("storage.local_path", root.Flags().Lookup("storage-path"))
	_ = viper.BindPFlag("shapes.index_path", root.Flags().Lookup("index-path"))
	_ = viper.BindPFlag("emulator.enabled", root.Flags().Lookup("emulator"))

	root.AddCommand(newVersionCmd(), newInverseCmd(), newDirectCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Meridian %s\n", version)
			fmt.Fprintf(out, "  Commit:     %s\n", commit)
			fmt.Fprintf(out, "  Build Date: %s\n", buildDate)
		},
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

func runServer(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	logger.Info("starting Meridian",
		"version", version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"storage_type", cfg.Storage.Type,
		"ellipsoid", cfg.Geodesy.Ellipsoid,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- application.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			logger.Error("server error", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return err
	}

	logger.Info("server stopped")
	return nil
}

// geodesyFromFlags builds an offline geodesy service for the CLI commands.
func geodesyFromFlags(cmd *cobra.Command) (*application.GeodesyService, error) {
	ellipsoid, _ := cmd.Flags().GetString("ellipsoid")
	method, _ := cmd.Flags().GetString("method")
	logger := setupLogger(config.LogConfig{Level: "error", Format: "text"}, cmd.ErrOrStderr())
	return application.NewGeodesyService(&output.NoOpMetrics{}, logger, application.GeodesyConfig{
		Ellipsoid: ellipsoid,
		Method:    method,
	})
}

func newInverseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inverse FROM TO",
		Short: "Compute distance and bearings between two positions",
		Example: `  meridian inverse "53.55,9.99" "54.32,10.12"
  meridian inverse "53°33'N 9°59'E" "51°30'N 0°7'W" --unit nmi --method karney`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc := domain.LocaleFor(mustString(cmd, "locale"))
			from, err := domain.ParsePosition(args[0], loc)
			if err != nil {
				return err
			}
			to, err := domain.ParsePosition(args[1], loc)
			if err != nil {
				return err
			}
			unit, err := domain.ParseDistanceUnit(mustString(cmd, "unit"))
			if err != nil {
				return err
			}

			svc, err := geodesyFromFlags(cmd)
			if err != nil {
				return err
			}
			res, err := svc.Inverse(cmd.Context(), input.InverseRequest{From: from, To: to, Unit: unit})
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"distance":        res.Distance.Value,
				"unit":            res.Distance.Unit.Symbol(),
				"initial_bearing": res.InitialBearing.Degrees(),
				"final_bearing":   nullableBearing(res.FinalBearing),
				"converged":       res.Converged,
				"method":          res.Method,
				"ellipsoid":       res.Ellipsoid,
			})
		},
	}
	cmd.Flags().String("unit", "m", "distance unit (m, km, nmi, mi, ft)")
	cmd.Flags().String("method", "", "vincenty, karney or approximate")
	cmd.Flags().String("locale", "", "locale of the positions, e.g. de")
	return cmd
}

func newDirectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "direct FROM BEARING DISTANCE",
		Short:   "Compute the destination from a position, bearing and distance",
		Example: `  meridian direct "53.55,9.99" 45 10 --unit nmi`,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc := domain.LocaleFor(mustString(cmd, "locale"))
			from, err := domain.ParsePosition(args[0], loc)
			if err != nil {
				return err
			}
			bearing, err := domain.ParseAngle(args[1], loc)
			if err != nil {
				return err
			}
			value, err := cast.ToFloat64E(strings.ReplaceAll(args[2], string(loc.Decimal), "."))
			if err != nil {
				return fmt.Errorf("distance: %w", err)
			}
			unit, err := domain.ParseDistanceUnit(mustString(cmd, "unit"))
			if err != nil {
				return err
			}

			svc, err := geodesyFromFlags(cmd)
			if err != nil {
				return err
			}
			res, err := svc.Direct(cmd.Context(), input.DirectRequest{
				From:     from,
				Bearing:  domain.Azimuth(bearing.Degrees()),
				Distance: domain.NewDistance(value, unit),
			})
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"lat":       res.Destination.Latitude.Degrees(),
				"lon":       res.Destination.Longitude.Degrees(),
				"formatted": res.Destination.String(),
				"method":    res.Method,
				"ellipsoid": res.Ellipsoid,
			})
		},
	}
	cmd.Flags().String("unit", "m", "distance unit (m, km, nmi, mi, ft)")
	cmd.Flags().String("method", "", "vincenty or karney")
	cmd.Flags().String("locale", "", "locale of the arguments, e.g. de")
	return cmd
}

func mustString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

func nullableBearing(a domain.Azimuth) interface{} {
	if a.IsInvalid() {
		return nil
	}
	return a.Degrees()
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setupLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}
