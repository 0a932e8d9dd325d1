package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/myna-logistics/settlement-cli/internal/ledger"
	"github.com/myna-logistics/settlement-cli/internal/payout"
	"github.com/myna-logistics/settlement-cli/internal/settlement"
	"github.com/myna-logistics/settlement-cli/internal/store"
	"github.com/myna-logistics/settlement-cli/internal/verify"
	anthropicpkg "github.com/myna-logistics/settlement-cli/pkg/anthropic"
	"github.com/myna-logistics/settlement-cli/pkg/podregistry"
	"github.com/myna-logistics/settlement-cli/pkg/razorpay"
)

// settlementEnv holds the initialized store, clients, and orchestrator
// needed by the settle/batch/serve commands.
type settlementEnv struct {
	Store        store.Store
	Orchestrator *settlement.Orchestrator
	Rail         razorpay.Client // nil when running without rail credentials
}

// Close releases resources held by the environment.
func (se *settlementEnv) Close() {
	if se.Store != nil {
		_ = se.Store.Close()
	}
}

// initSettlement sets up the store, the verification, ledger, and payout
// backends, and builds the orchestrator. Callers should defer env.Close().
func initSettlement(ctx context.Context, mode string) (*settlementEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	aiClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	verifier := verify.NewModelVerifier(aiClient, cfg.Anthropic.Model,
		verify.WithMaxTokens(int64(cfg.Anthropic.MaxTokens)))

	env := &settlementEnv{Store: st}

	var recorder ledger.Recorder
	if cfg.Ledger.RPCURL != "" && cfg.Ledger.Contract != "" {
		registry := podregistry.NewClient(cfg.Ledger.RPCURL)
		recorder = ledger.NewChainRecorder(registry, ledger.ChainConfig{
			Network:        cfg.Ledger.Network,
			Contract:       cfg.Ledger.Contract,
			ConfirmTimeout: time.Duration(cfg.Ledger.ConfirmTimeoutSecs) * time.Second,
			PollInterval:   time.Duration(cfg.Ledger.PollIntervalMs) * time.Millisecond,
		})
	} else {
		zap.L().Warn("ledger gateway not configured, recording synthetic local records")
		recorder = ledger.NewLocalRecorder(cfg.Ledger.Network)
	}

	var initiator payout.Initiator
	if cfg.Razorpay.KeyID != "" && cfg.Razorpay.KeySecret != "" {
		env.Rail = razorpay.NewClient(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret,
			razorpay.WithBaseURL(cfg.Razorpay.BaseURL))
		initiator = payout.NewRailInitiator(env.Rail, payout.RailConfig{
			AccountNumber: cfg.Razorpay.AccountNumber,
		})
	} else {
		zap.L().Warn("payment rail not configured, initiating synthetic local payouts")
		initiator = payout.NewLocalInitiator()
	}

	env.Orchestrator = settlement.New(verifier, recorder, initiator,
		settlement.WithConfidenceThreshold(cfg.Settlement.ConfidenceThreshold),
		settlement.WithStore(st),
	)

	return env, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "settlements.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}
