package di

import (
	"context"
	"fmt"

	"github.com/aristath/tao-sentinel/internal/clients/chutes"
	"github.com/aristath/tao-sentinel/internal/clients/datura"
	"github.com/aristath/tao-sentinel/internal/clients/subtensor"
	"github.com/aristath/tao-sentinel/internal/config"
	"github.com/aristath/tao-sentinel/internal/events"
	"github.com/aristath/tao-sentinel/internal/modules/dividends"
	"github.com/aristath/tao-sentinel/internal/modules/sentiment"
	"github.com/aristath/tao-sentinel/internal/modules/trading"
	"github.com/aristath/tao-sentinel/internal/reliability"
	"github.com/aristath/tao-sentinel/internal/scheduler"
	"github.com/rs/zerolog"
)

// InitializeServices creates the clients and business services.
// Order matters: the workflow must exist before the dividend service that triggers it.
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	policy := cfg.Policy

	// Event bus (used by every service below)
	container.EventBus = events.NewBus(log)

	// Clients
	container.Ledger = subtensor.NewClient(cfg.SubtensorURL, log)
	container.Social = datura.NewClient(cfg.DaturaBaseURL, cfg.DaturaAPIKey, policy.SocialRatePerSecond, log)
	container.LLM = chutes.NewClient(cfg.ChutesBaseURL, cfg.ChutesAPIKey, cfg.ChutesModel, log)

	// Sentiment signal
	container.Signal = sentiment.NewSignalAdapter(container.Social, container.LLM, log)

	// Trading workflow
	container.Workflow = trading.NewWorkflow(
		container.Signal,
		container.Ledger,
		container.History,
		container.Cache,
		container.EventBus,
		trading.Config{
			MaxConcurrent:     policy.MaxConcurrentWorkflows,
			Timeout:           policy.WorkflowTimeout,
			MaxPosts:          policy.MaxPosts,
			SentimentCacheTTL: policy.SentimentCacheTTL,
			DefaultTopicID:    cfg.DefaultNetuid,
			DefaultAccount:    cfg.DefaultHotkey,
			Sizing: sentiment.Policy{
				Unit: policy.TradeUnit,
				Max:  policy.MaxTradeAmount,
			},
		},
		log,
	)

	// Dividend read path
	container.Dividends = dividends.NewService(
		container.Cache,
		container.Ledger,
		container.History,
		container.EventBus,
		dividends.Policy{
			CacheTTL:       policy.CacheTTL,
			ScanCeiling:    policy.ScanCeiling,
			DefaultTopicID: cfg.DefaultNetuid,
		},
		log,
	).WithScheduler(&workflowScheduler{workflow: container.Workflow}, cfg.DefaultHotkey)

	// History backups need the sqlite file to snapshot
	if cfg.Backup.Enabled() && container.HistoryDB != nil {
		store, err := reliability.NewS3Store(ctx, cfg.Backup, log)
		if err != nil {
			return fmt.Errorf("failed to create backup store: %w", err)
		}
		container.Backup = reliability.NewBackupService(container.HistoryDB, store, container.EventBus, cfg.DataDir, log)
	} else if cfg.Backup.Enabled() {
		log.Warn().Msg("Backups are only taken of the sqlite history database; skipping")
	}

	container.Scheduler = scheduler.New(log)

	log.Info().Msg("Services initialized")
	return nil
}
