package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"loan-predictor/internal/cfg"
	"loan-predictor/internal/common"
	"loan-predictor/internal/features"
	"loan-predictor/internal/metrics"
	"loan-predictor/internal/ml"
	"loan-predictor/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to read .env file")
	}

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	setupLogging(c)

	// The service must not accept traffic without a model.
	model, err := ml.LoadModel(c.ModelPath)
	if err != nil {
		log.Fatal().Err(err).Str("model_path", c.ModelPath).Msg("model load failed")
	}
	defer model.Close()

	m := metrics.New()
	mw := metrics.NewWrapper(m)
	aligner := features.NewAligner(nil)
	predictor := ml.NewPredictor(model, aligner, mw)

	opts := []ml.ServerOption{
		ml.WithMetrics(mw),
		ml.WithMetricsHandler(promhttp.Handler()),
	}
	store := initializeStorage(c)
	if store != nil {
		defer store.Close()
		recordModelLoad(store, model, aligner)
		opts = append(opts, ml.WithHistory(store))
	}

	server := ml.NewModelServer(predictor, model, ml.ServerConfig{
		Port:         c.ListenPort,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}, opts...)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	waitForShutdown(server, c.ShutdownTimeout, errCh)
}

func setupLogging(c cfg.Settings) {
	zerolog.SetGlobalLevel(c.ZerologLevel())
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if c.LogFormat == common.LogFormatConsole {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// initializeStorage opens the model history store if DATA_PATH is configured
func initializeStorage(c cfg.Settings) *storage.Store {
	if c.DataPath == "" {
		return nil
	}
	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("storage initialization failed, continuing without model history")
		return nil
	}
	return store
}

func recordModelLoad(store *storage.Store, model *ml.LoadedModel, aligner *features.Aligner) {
	info := model.Info()
	caps := model.Capabilities()

	if prev, ok, err := store.LastModelLoad(); err == nil && ok && prev.Checksum != info.Checksum {
		log.Info().
			Str("previous_version", prev.Version).
			Str("version", info.Version).
			Msg("model artifact changed since last start")
	}

	err := store.RecordModelLoad(storage.ModelRecord{
		Path:                  info.Path,
		Version:               info.Version,
		ModelType:             info.ModelType,
		Checksum:              info.Checksum,
		Features:              info.NFeatures,
		HasDeclaredSchema:     caps.HasDeclaredSchema,
		SupportsProbabilities: caps.SupportsProbabilities,
		UnmappedFeatures:      aligner.Unmapped(model.Schema()),
		LoadedAt:              info.LoadedAt,
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to record model load")
	}
}

// waitForShutdown blocks until a signal arrives or the server fails, then
// drains in-flight requests before the deferred model release runs.
func waitForShutdown(server *ml.ModelServer, timeout time.Duration, errCh <-chan error) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case err, ok := <-errCh:
		if ok && err != nil {
			log.Error().Err(err).Msg("model server failed")
		}
	}

	log.Info().Msg("shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("shutdown timeout, forcing exit")
		return
	}
	log.Info().Msg("server stopped")
}
