// Package app wires the ledger services from configuration so every binary
// builds them the same way.
package app

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/starlightdeck/careon/internal/bank"
	"github.com/starlightdeck/careon/internal/cashier"
	"github.com/starlightdeck/careon/internal/cron"
	"github.com/starlightdeck/careon/internal/deposits"
	"github.com/starlightdeck/careon/internal/filestore"
	"github.com/starlightdeck/careon/internal/game"
	"github.com/starlightdeck/careon/internal/ledger"
	"github.com/starlightdeck/careon/internal/locks"
	"github.com/starlightdeck/careon/internal/narrator"
	"github.com/starlightdeck/careon/pkg/config"
	"github.com/starlightdeck/careon/pkg/logger"
	"github.com/starlightdeck/careon/pkg/metrics"
	"github.com/starlightdeck/careon/pkg/redis"
)

// Options override parts of the wiring.
type Options struct {
	// Registerer receives the ledger metrics. Nil disables them.
	Registerer prometheus.Registerer
	// Redis enables the cross-process document guard when set.
	Redis      *redis.Client
	Narrator   game.Narrator
	Randomizer game.Randomizer
	Clock      func() time.Time
}

// App holds the wired services.
type App struct {
	Config    *config.Config
	Logger    *logger.Logger
	Metrics   *metrics.LedgerMetrics
	Guard     locks.Guard
	BankRepo  *bank.Repository
	CodesRepo *deposits.Repository
	Bank      bank.Service
	Codes     deposits.Service
	Cashier   cashier.Service
	Game      game.Service
}

func New(cfg *config.Config, logg *logger.Logger, opts Options) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}

	ledgerMetrics := metrics.NewLedgerMetrics(opts.Registerer)
	store := filestore.New(logg)

	var guard locks.Guard = locks.Nop{}
	if opts.Redis != nil {
		redisGuard, err := locks.NewRedisGuard(opts.Redis, cfg.Redis.LockTTL, cfg.Redis.LockWait)
		if err != nil {
			return nil, fmt.Errorf("create document guard: %w", err)
		}
		guard = redisGuard
	}

	bankRepo, err := bank.NewRepository(store, cfg.Storage.BankPath, cfg.Bank.StartingBalance, logg, ledgerMetrics)
	if err != nil {
		return nil, fmt.Errorf("create bank repository: %w", err)
	}
	bankSvc, err := bank.NewService(bank.ServiceParams{
		Repo:    bankRepo,
		Guard:   guard,
		Metrics: ledgerMetrics,
		Logger:  logg,
		Config:  cfg.Bank,
		Clock:   opts.Clock,
	})
	if err != nil {
		return nil, fmt.Errorf("create bank service: %w", err)
	}

	codesRepo, err := deposits.NewRepository(store, cfg.Storage.CodesPath, logg, ledgerMetrics)
	if err != nil {
		return nil, fmt.Errorf("create codes repository: %w", err)
	}
	codesSvc, err := deposits.NewService(deposits.ServiceParams{
		Repo:    codesRepo,
		Guard:   guard,
		Format:  ledger.CodeFormat{Prefix: cfg.Codes.Prefix, SuffixLength: cfg.Codes.SuffixLength},
		Metrics: ledgerMetrics,
		Logger:  logg,
		Clock:   opts.Clock,
	})
	if err != nil {
		return nil, fmt.Errorf("create codes service: %w", err)
	}

	cashierSvc, err := cashier.NewService(cashier.ServiceParams{
		Bank:        bankSvc,
		Codes:       codesSvc,
		BankConfig:  cfg.Bank,
		CodesConfig: cfg.Codes,
		Logger:      logg,
	})
	if err != nil {
		return nil, fmt.Errorf("create cashier service: %w", err)
	}

	teller := opts.Narrator
	if teller == nil {
		teller = narrator.New(cfg.Narrator, logg, narrator.WithMetrics(ledgerMetrics))
	}
	gameSvc, err := game.NewService(game.ServiceParams{
		Bank:       bankSvc,
		Randomizer: opts.Randomizer,
		Narrator:   teller,
		Metrics:    ledgerMetrics,
		Logger:     logg,
		Clock:      opts.Clock,
	})
	if err != nil {
		return nil, fmt.Errorf("create game service: %w", err)
	}

	return &App{
		Config:    cfg,
		Logger:    logg,
		Metrics:   ledgerMetrics,
		Guard:     guard,
		BankRepo:  bankRepo,
		CodesRepo: codesRepo,
		Bank:      bankSvc,
		Codes:     codesSvc,
		Cashier:   cashierSvc,
		Game:      gameSvc,
	}, nil
}

// Documents maps each ledger document's lock name to its repairer.
func (a *App) Documents() map[string]cron.DocumentRepairer {
	return map[string]cron.DocumentRepairer{
		bank.DocumentName:     a.BankRepo,
		deposits.DocumentName: a.CodesRepo,
	}
}

// Jobs builds the maintenance job registry.
func (a *App) Jobs(jobMetrics *metrics.JobMetrics, clock func() time.Time) (*cron.Registry, error) {
	repair, err := cron.NewLedgerRepairJob(cron.LedgerRepairJobParams{
		Logger:    a.Logger,
		Documents: a.Documents(),
		Guard:     a.Guard,
		Clock:     clock,
	})
	if err != nil {
		return nil, err
	}
	audit, err := cron.NewCodeAuditJob(cron.CodeAuditJobParams{
		Logger:  a.Logger,
		Codes:   a.Codes,
		Metrics: jobMetrics,
	})
	if err != nil {
		return nil, err
	}
	return cron.NewRegistry(repair, audit), nil
}
