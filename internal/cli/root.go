// Package cli implements creditctl, the operator command line for the
// credit ledger.
package cli

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/listingkit/credits-api/internal/app"
	"github.com/listingkit/credits-api/internal/config"
	"github.com/listingkit/credits-api/internal/pkg/database"
	"github.com/listingkit/credits-api/internal/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "creditctl",
	Short: "Operate the listing credit ledger",
	Long: `creditctl inspects and corrects agent credit balances, manages promo
codes and credit packages, and reconciles the ledger against listings,
orders and redemptions. It reads the same environment as the API server.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// env holds what a command needs once connected.
type env struct {
	cfg      *config.Config
	db       *sqlx.DB
	redis    *redis.Client
	services *app.Services
}

func (e *env) close() {
	database.CloseRedis(e.redis)
	database.Close(e.db)
}

// connect loads configuration and opens the database. Redis is optional for
// the CLI; when it is unreachable ledger events are skipped.
func connect(_ *cobra.Command) (*env, error) {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: "development"})

	db, err := database.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		redisClient = nil
	}

	return &env{
		cfg:      cfg,
		db:       db,
		redis:    redisClient,
		services: app.NewServices(cfg, db, redisClient),
	}, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
