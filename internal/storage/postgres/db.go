// Package postgres is the gorm-backed store for projects and requests.
package postgres

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"simflow/portal-backend/internal/projects"
	"simflow/portal-backend/internal/requests"
)

// Options configures the connection pool.
type Options struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogQueries      bool
}

// Open connects to PostgreSQL and configures the pool.
func Open(opts Options) (*gorm.DB, error) {
	level := logger.Warn
	if opts.LogQueries {
		level = logger.Info
	}
	db, err := gorm.Open(postgres.Open(opts.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	return db, nil
}

// codeSequence holds the last issued project code number per year.
type codeSequence struct {
	Year int `gorm:"primaryKey;autoIncrement:false"`
	Last int `gorm:"not null"`
}

func (codeSequence) TableName() string {
	return "project_code_sequences"
}

// Models lists every table this store owns.
func Models() []any {
	return []any{
		&projects.Project{},
		&projects.HourTransaction{},
		&projects.StatusHistory{},
		&projects.Milestone{},
		&codeSequence{},
		&requests.Request{},
		&requests.Comment{},
		&requests.TimeEntry{},
		&requests.TitleChangeRequest{},
		&requests.DiscussionRequest{},
	}
}

// AutoMigrate creates or updates the schema, including any extra models
// owned by other packages sharing the database.
func AutoMigrate(db *gorm.DB, extra ...any) error {
	if err := db.AutoMigrate(append(Models(), extra...)...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
