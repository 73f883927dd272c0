package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/hanapgigs/escrow-engine/internal/api/handler"
	"github.com/hanapgigs/escrow-engine/internal/api/middleware"
	"github.com/hanapgigs/escrow-engine/internal/api/spec"
	"github.com/hanapgigs/escrow-engine/internal/config"
	"github.com/hanapgigs/escrow-engine/internal/idempotency"
	"github.com/hanapgigs/escrow-engine/internal/ledger"
	"github.com/hanapgigs/escrow-engine/internal/repository"
	"github.com/hanapgigs/escrow-engine/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

type Router struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        *pgxpool.Pool
	store     *repository.Store
	idemStore *idempotency.Store
	redis     redis.Cmdable
}

func NewRouter(cfg *config.Config, logger *zap.Logger, db *pgxpool.Pool, store *repository.Store, idemStore *idempotency.Store, redis redis.Cmdable) *Router {
	return &Router{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		store:     store,
		idemStore: idemStore,
		redis:     redis,
	}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	// Services
	led := ledger.New()
	clock := service.NewSystemClock()
	issuer := service.NewContractIssuer(clock)
	settlementSvc := service.NewSettlementService(api.store, led, issuer, api.cfg.FeeRate)
	escrowSvc := service.NewEscrowService(api.store, led)
	accountSvc := service.NewAccountService(api.store, led, api.cfg.MinDepositCentavos)
	jobSvc := service.NewJobService(api.store)
	contractSvc := service.NewContractService(api.store, clock)

	// Handlers
	userHandler := handler.NewUserHandler(api.store)
	accountHandler := handler.NewAccountHandler(accountSvc)
	jobHandler := handler.NewJobHandler(jobSvc)
	bidHandler := handler.NewBidHandler(settlementSvc, jobSvc)
	projectHandler := handler.NewProjectHandler(escrowSvc, api.store)
	contractHandler := handler.NewContractHandler(contractSvc)
	healthHandler := handler.NewHealthHandler(api.db, api.redis)

	idem := middleware.IdempotencyMiddleware(api.idemStore, api.logger)

	// Operational surface
	r.Get("/healthz", healthHandler.Live)
	r.Get("/readyz", healthHandler.Ready)
	r.Method("GET", "/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", spec.OpenAPIHandler())
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))

	// Public routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))
		r.Post("/v1/users", userHandler.Create)
		r.Post("/v1/auth/login", userHandler.Login)
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

		// Wallets
		r.Post("/v1/accounts", accountHandler.Create)
		r.With(idem).Post("/v1/accounts/deposits", accountHandler.Deposit)
		r.Get("/v1/accounts/balance", accountHandler.GetBalance)
		r.Get("/v1/accounts/statement", accountHandler.GetStatement)

		// Marketplace
		r.Post("/v1/jobs", jobHandler.Create)
		r.Get("/v1/jobs/{id}", jobHandler.Get)
		r.Post("/v1/jobs/{id}/bids", jobHandler.PlaceBid)
		r.Get("/v1/jobs/{id}/bids", jobHandler.ListBids)

		// Settlement
		r.Get("/v1/bids/{id}", bidHandler.Get)
		r.With(idem).Patch("/v1/bids/{id}", bidHandler.UpdateStatus)

		// Projects and escrow
		r.Get("/v1/projects/{id}", projectHandler.Get)
		r.Get("/v1/projects/{id}/transactions", projectHandler.ListTransactions)
		r.With(idem).Post("/v1/projects/{id}/release", projectHandler.Release)
		r.With(idem).Post("/v1/projects/{id}/refund", projectHandler.Refund)

		// Contracts
		r.Get("/v1/contracts/{id}", contractHandler.Get)
		r.Post("/v1/contracts/{id}/signatures", contractHandler.Sign)
	})

	return r
}
