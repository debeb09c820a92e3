package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/listingkit/credits-api/internal/app"
	"github.com/listingkit/credits-api/internal/config"
	"github.com/listingkit/credits-api/internal/domain/billing"
	"github.com/listingkit/credits-api/internal/domain/consumption"
	"github.com/listingkit/credits-api/internal/domain/ledger"
	"github.com/listingkit/credits-api/internal/domain/promo"
	"github.com/listingkit/credits-api/internal/domain/reconciliation"
	"github.com/listingkit/credits-api/internal/middleware"
	"github.com/listingkit/credits-api/internal/pkg/database"
	"github.com/listingkit/credits-api/internal/pkg/jwt"
	"github.com/listingkit/credits-api/internal/pkg/logger"
	pkgresponse "github.com/listingkit/credits-api/internal/pkg/response"
	"github.com/listingkit/credits-api/internal/pkg/webhook"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
		LogFile:     cfg.LogFile,
	})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Str("db_driver", cfg.DBDriver).
		Msg("Starting credits API")

	db, err := database.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close(db)

	if cfg.AutoMigrate {
		if err := database.Migrate(context.Background(), db); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply schema")
		}
	}

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)
	if cfg.PaymentWebhookSecret == "" {
		log.Warn().Msg("PAYMENT_WEBHOOK_SECRET is empty, payment webhooks will be rejected")
	}
	verifier := webhook.NewVerifier(cfg.PaymentWebhookSecret, cfg.PaymentWebhookTolerance)

	services := app.NewServices(cfg, db, redis)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newRouter(cfg, db, redis, jwtService, verifier, services),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

// newRouter mounts every HTTP route of the credits API.
func newRouter(
	cfg *config.Config,
	db *sqlx.DB,
	redis *goredis.Client,
	jwtService *jwt.Service,
	verifier *webhook.Verifier,
	services *app.Services,
) http.Handler {
	// ---------- Handlers ----------
	ledgerHandler := ledger.NewHandler(services.Ledger)
	consumptionHandler := consumption.NewHandler(services.Gate, services.Ledger)
	promoHandler := promo.NewHandler(services.Promo)
	billingHandler := billing.NewHandler(services.Billing, verifier)
	reconciliationHandler := reconciliation.NewHandler(services.Reconciliation)

	// ---------- Middleware ----------
	authMiddleware := middleware.Auth(jwtService)
	agentOnly := middleware.RequireAgent()
	agentAuth := func(next http.Handler) http.Handler {
		return authMiddleware(agentOnly(next))
	}
	redeemLimiter := middleware.NewRateLimiter(redis, "promo_redeem", cfg.RedeemRateLimit, cfg.RedeemRateWindow)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			pkgresponse.Error(w, http.StatusServiceUnavailable, "UNHEALTHY", "database unavailable")
			return
		}
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			pkgresponse.OK(w, map[string]string{"message": "pong"})
		})

		r.Route("/credits", func(r chi.Router) {
			r.Use(agentAuth)
			r.Get("/balance", ledgerHandler.GetBalance)
			r.Get("/ledger", ledgerHandler.ListEntries)
			r.Get("/packages", billingHandler.ListPackages)
			r.Get("/orders", billingHandler.ListOrders)
		})

		r.Mount("/promo", promoHandler.Routes(agentAuth, redeemLimiter.Middleware))
		r.Mount("/listings", consumptionHandler.Routes(agentAuth))
	})

	r.Mount("/webhooks", billingHandler.WebhookRoutes())

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(authMiddleware, middleware.RequireAdmin())

		r.Mount("/promo-codes", promoHandler.AdminRoutes())
		r.Mount("/agents", ledgerHandler.AdminAgentRoutes())
		r.Get("/ledger", ledgerHandler.Search)
		r.Mount("/reconciliation", reconciliationHandler.AdminRoutes())
	})

	return r
}
