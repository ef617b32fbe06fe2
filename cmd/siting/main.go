package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/demand-siting/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/demand-siting/internal/adapter/kafka"
	"github.com/couchcryptid/demand-siting/internal/adapter/mapbox"
	"github.com/couchcryptid/demand-siting/internal/config"
	"github.com/couchcryptid/demand-siting/internal/domain"
	"github.com/couchcryptid/demand-siting/internal/observability"
	"github.com/couchcryptid/demand-siting/internal/pipeline"
	"github.com/couchcryptid/demand-siting/internal/render"
	"github.com/couchcryptid/demand-siting/internal/siting"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to read .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	coords, err := config.LoadCoordinates(cfg.CoordinatesPath)
	if err != nil {
		logger.Error("failed to load coordinates", "error", err)
		os.Exit(1)
	}

	// Mapbox only fills cities missing from the coordinate table.
	var fallback domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		fallback = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	mapOpts := render.DefaultMapOptions()
	mapOpts.Zoom = cfg.MapZoom

	stages := pipeline.Stages{
		Loader: pipeline.FileLoader{
			CustomersPath: cfg.CustomersPath,
			OrdersPath:    cfg.OrdersPath,
			PaymentsPath:  cfg.PaymentsPath,
			Delimiter:     cfg.Delimiter,
		},
		Geocoder: pipeline.NewTableGeocoder(coords, fallback, cfg.Region, cfg.MissingPolicy, logger),
		Siter:    siting.New(cfg.Siting, logger),
		Artifacts: render.FileWriter{
			Dir:         cfg.OutputDir,
			MapFile:     cfg.MapFile,
			ChartFile:   cfg.ChartFile,
			GeoJSONFile: cfg.GeoJSONFile,
			Map:         mapOpts,
		},
		Region: cfg.Region,
	}

	var writer *kafkaadapter.Writer
	if len(cfg.KafkaBrokers) > 0 {
		writer = kafkaadapter.NewWriter(cfg, logger)
		stages.Publisher = writer
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	}

	p := pipeline.New(stages, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, runErr := p.Run(ctx)
	if runErr == nil {
		if err := printReport(res); err != nil {
			logger.Error("failed to print report", "error", err)
		}
	}

	if cfg.Serve {
		srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, mapOpts, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()

		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}

	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	if runErr != nil {
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// printReport writes the demand and facility tables to stdout.
func printReport(res *pipeline.Result) error {
	if err := render.Table(os.Stdout, res.Demand); err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout)
	if err := render.FacilityTable(os.Stdout, res.Demand, res.Facilities); err != nil {
		return err
	}
	if res.Warning != nil {
		fmt.Fprintf(os.Stdout, "\nwarning: %s\n", res.Warning.Error())
	}
	for _, path := range res.Artifacts {
		fmt.Fprintf(os.Stdout, "wrote %s\n", path)
	}
	return nil
}
