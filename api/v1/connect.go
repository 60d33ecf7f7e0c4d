package v1

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"simflow/portal-backend/internal/config"
	"simflow/portal-backend/internal/storage/postgres"
	"simflow/portal-backend/pkg/awsconfig"
)

// Connect opens the connections the configuration asks for. The returned
// cleanup closes whatever was opened.
func Connect(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Deps, func(), error) {
	deps := Deps{Config: cfg, Logger: logger}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Storage.Driver == config.StoragePostgres {
		dsn := cfg.Database.GetDatabaseURL()
		logger.Info("Connecting to database",
			zap.String("host", cfg.Database.Host),
			zap.String("db", cfg.Database.DBName))

		db, err := postgres.Open(postgres.Options{
			DSN:             dsn,
			MaxOpenConns:    cfg.Database.MaxConnections,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.MaxLifetime,
			LogQueries:      cfg.Logging.Development,
		})
		if err != nil {
			return deps, cleanup, err
		}
		if sqlDB, err := db.DB(); err == nil {
			closers = append(closers, func() { sqlDB.Close() })
		}
		deps.Gorm = db

		// The audit trail is append-only SQL and goes through sqlx.
		sx, err := sqlx.ConnectContext(ctx, "postgres", dsn)
		if err != nil {
			cleanup()
			return deps, func() {}, fmt.Errorf("failed to connect audit database: %w", err)
		}
		sx.SetMaxOpenConns(5)
		closers = append(closers, func() { sx.Close() })
		deps.SQL = sx
	}

	if needsAWS(cfg) {
		awsCfg, err := awsconfig.Load(ctx, awsconfig.Options{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			Endpoint:        cfg.AWS.Endpoint,
		})
		if err != nil {
			cleanup()
			return deps, func() {}, err
		}
		deps.AWS = &awsCfg
	}
	return deps, cleanup, nil
}

func needsAWS(cfg *config.Config) bool {
	return cfg.Notifications.SNSTopicARN != "" ||
		cfg.Notifications.EmailSender != "" ||
		cfg.Exports.Bucket != ""
}
