package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/gastos-must-flow/internal/config"
	"github.com/Veraticus/gastos-must-flow/internal/llm"
	"github.com/Veraticus/gastos-must-flow/internal/pipeline"
	"github.com/Veraticus/gastos-must-flow/internal/storage"
	"github.com/Veraticus/gastos-must-flow/internal/twilio"
	"github.com/Veraticus/gastos-must-flow/internal/worker"
)

// initStorage opens the configured database and brings its schema up to date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(config.DatabasePath(viper.GetViper()))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

func location() (*time.Location, error) {
	return config.Location(viper.GetViper())
}

// newProcessor wires the pipeline to the store, Twilio and the LLM provider.
func newProcessor(store *storage.SQLiteStorage) (*pipeline.Processor, error) {
	v := viper.GetViper()
	logger := slog.Default()

	loc, err := config.Location(v)
	if err != nil {
		return nil, err
	}

	client, err := llm.NewClient(config.LLMConfig(v))
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	twilioCfg := config.TwilioConfig(v)
	gateway, err := twilio.NewGateway(twilioCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging gateway: %w", err)
	}
	media, err := twilio.NewMediaFetcher(twilioCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create media fetcher: %w", err)
	}

	return pipeline.NewProcessor(pipeline.Dependencies{
		Queue:     store,
		Users:     store,
		Expenses:  store,
		Gateway:   gateway,
		Media:     media,
		Extractor: llm.NewExtractor(client, logger, loc),
		Logger:    logger,
		Location:  loc,
	})
}

func newPoller(store *storage.SQLiteStorage) (*worker.Poller, error) {
	processor, err := newProcessor(store)
	if err != nil {
		return nil, err
	}
	return worker.NewPoller(store, processor, config.WorkerConfig(viper.GetViper()), slog.Default()), nil
}

func closeStore(store *storage.SQLiteStorage) {
	if err := store.Close(); err != nil {
		slog.Warn("failed to close database", "error", err)
	}
}
