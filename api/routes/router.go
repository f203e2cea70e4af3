package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/starlightdeck/careon/api/controllers"
	"github.com/starlightdeck/careon/api/middleware"
	"github.com/starlightdeck/careon/internal/bank"
	"github.com/starlightdeck/careon/internal/cashier"
	"github.com/starlightdeck/careon/internal/deposits"
	"github.com/starlightdeck/careon/internal/game"
	"github.com/starlightdeck/careon/pkg/config"
	"github.com/starlightdeck/careon/pkg/logger"
)

type rateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Params bundles the services the HTTP surface depends on.
type Params struct {
	Config  *config.Config
	Logger  *logger.Logger
	Bank    bank.Service
	Codes   deposits.Service
	Cashier cashier.Service
	Game    game.Service
	// RateLimiter throttles redeem attempts; nil disables throttling.
	RateLimiter rateLimiter
	// Probes are pinged by /health/ready.
	Probes   map[string]controllers.Pinger
	Gatherer prometheus.Gatherer
	Clock    func() time.Time
}

func NewRouter(p Params) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	redeemPolicy := middleware.NewRateLimitPolicy(
		"redeem",
		cfg.RateLimit.Window,
		cfg.RateLimit.Limit,
	)

	limiter := p.RateLimiter

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.Probes))
	})

	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/bank", func(r chi.Router) {
			r.Get("/", controllers.BankSummary(p.Bank, logg))
			r.Get("/history", controllers.BankHistory(p.Bank, logg))
			r.Get("/phrases", controllers.BankPhrases(p.Bank, logg))
			r.Post("/phrases", controllers.DonatePhrase(p.Bank, logg))
		})

		r.Route("/market", func(r chi.Router) {
			r.Get("/packages", controllers.MarketPackages())
			r.Post("/purchases", controllers.MarketPurchase(p.Cashier, logg))
		})

		r.Route("/codes", func(r chi.Router) {
			r.With(middleware.RateLimit(redeemPolicy, limiter, logg)).Post("/redeem", controllers.RedeemCode(p.Cashier, logg))
		})

		r.Route("/game", func(r chi.Router) {
			r.Post("/rapid", controllers.GameRapid(p.Game, logg))
			r.Post("/classic", controllers.ClassicStart(p.Game, logg))
			r.Route("/classic/{sessionID}", func(r chi.Router) {
				r.Get("/", controllers.ClassicGet(p.Game, logg))
				r.Post("/draws", controllers.ClassicDraw(p.Game, logg))
				r.Post("/final", controllers.ClassicFinal(p.Game, logg))
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.With(middleware.RateLimit(middleware.NewRateLimitPolicy("admin-session", cfg.RateLimit.Window, cfg.RateLimit.Limit), limiter, logg)).
				Post("/session", controllers.AdminSession(cfg.Admin, logg, p.Clock))

			r.Group(func(r chi.Router) {
				r.Use(middleware.AdminAuth(cfg.Admin, logg))
				r.Post("/codes", controllers.AdminMintCode(p.Codes, logg))
				r.Get("/codes/events", controllers.AdminCodeEvents(p.Codes, logg))
				r.Get("/codes/outstanding", controllers.AdminOutstandingCodes(p.Codes, logg))
				r.Post("/rewards", controllers.AdminCommunityReward(p.Cashier, logg))
				r.Post("/devtool", controllers.AdminDevtool(p.Bank, logg))
			})
		})
	})

	return r
}
