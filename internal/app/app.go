package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"merchant-metrics-pipeline/internal/config"
	"merchant-metrics-pipeline/internal/extract"
	"merchant-metrics-pipeline/internal/report"
	"merchant-metrics-pipeline/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newSource() *extract.CSVSource {
	return extract.NewCSVSource(extract.CSVOptions{
		MerchantsPath:    a.Config.Input.MerchantsCSV,
		TransactionsPath: a.Config.Input.TransactionsCSV,
	}, a.Logger)
}

func (a *App) newNotifier() report.Notifier {
	if a.Config.Report.Telegram.Enabled {
		cfg := a.Config.Report.Telegram
		return report.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// ExportOptions hold parameters for the flat-file export.
type ExportOptions struct {
	CSVPath string
	PNGPath string
	MaxDays int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// GenerateOptions configure sample data generation. Zero values fall back
// to the generate section of the configuration.
type GenerateOptions struct {
	OutputDir  string
	StartDate  string
	Days       int
	PerDay     int
	Seed       int64
	BadRecords *bool
}
