package routes

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tdcchain/core"
	"tdcchain/core/events"
	"tdcchain/gateway/middleware"
	"tdcchain/storage/journal"
)

// History is the read side of the event journal.
type History interface {
	History(ctx context.Context, q journal.Query) ([]journal.Entry, error)
}

type Config struct {
	Runtime       *core.Runtime
	History       History
	Feed          *events.Feed
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
	Logger        *slog.Logger
}

// Rate limit keys understood by the router.
const (
	RateLimitRead  = "read"
	RateLimitWrite = "write"
)

func New(cfg Config) (http.Handler, error) {
	if cfg.Runtime == nil {
		return nil, errors.New("routes: runtime required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &ledgerRoutes{runtime: cfg.Runtime, history: cfg.History, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.CORS))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	obs := cfg.Observability
	limit := func(key string) func(http.Handler) http.Handler {
		if cfg.RateLimiter == nil {
			return passthrough
		}
		return cfg.RateLimiter.Middleware(key)
	}
	observe := func(route string) func(http.Handler) http.Handler {
		if obs == nil {
			return passthrough
		}
		return obs.Middleware(route)
	}

	r.Route("/v1", func(v1 chi.Router) {
		if cfg.Authenticator != nil {
			v1.Use(cfg.Authenticator.Middleware())
		}
		if cfg.Feed != nil {
			stream := &eventStream{runtime: cfg.Runtime, feed: cfg.Feed, logger: logger}
			v1.With(observe("events.ws")).Get("/events/ws", stream.serve)
		}
		v1.With(observe("ledgers.list"), limit(RateLimitRead)).Get("/ledgers", h.listLedgers)

		v1.Route("/ledgers/{ledger}", func(lr chi.Router) {
			read := lr.With(limit(RateLimitRead))
			write := lr.With(limit(RateLimitWrite))

			read.With(observe("ledger.get")).Get("/", h.getLedger)
			read.With(observe("ledger.supply")).Get("/supply", h.totalSupply)
			read.With(observe("ledger.balance")).Get("/balances/{account}", h.balanceOf)
			read.With(observe("ledger.token")).Get("/tokens/{id}", h.getToken)
			read.With(observe("ledger.token_uri")).Get("/tokens/{id}/uri", h.tokenURI)
			read.With(observe("ledger.metadata")).Get("/metadata", h.getMetadata)
			read.With(observe("ledger.has_role")).Get("/roles/{role}/{account}", h.hasRole)
			read.With(observe("ledger.links")).Get("/links", h.getLinks)
			read.With(observe("ledger.history")).Get("/history", h.getHistory)

			write.With(observe("ledger.grant")).Post("/roles/grant", h.grantRole)
			write.With(observe("ledger.revoke")).Post("/roles/revoke", h.revokeRole)
			write.With(observe("ledger.renounce")).Post("/roles/renounce", h.renounceRole)
			write.With(observe("ledger.base_uri")).Put("/metadata/base-uri", h.setBaseURI)
			write.With(observe("ledger.contract_uri")).Put("/metadata/contract-uri", h.setContractURI)
			write.With(observe("ledger.link_collectibles")).Put("/links/collectibles", h.linkCollectibles)
			write.With(observe("ledger.link_coins")).Put("/links/coins", h.linkCoins)
			write.With(observe("ledger.mint")).Post("/mint", h.mint)
			write.With(observe("ledger.transfer")).Post("/transfer", h.transfer)
			write.With(observe("ledger.redeem")).Post("/redeem", h.redeem)
		})
	})

	return r, nil
}

func passthrough(next http.Handler) http.Handler { return next }
