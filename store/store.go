// Package store keeps matches and accounts in a SQL database through gorm.
// Postgres is used in production and sqlite locally and in tests.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"moul.io/zapgorm2"

	"github.com/icco/minesduel"
	"github.com/icco/minesduel/match"
)

// Store implements match.Store and ranking.Source.
type Store struct {
	db *gorm.DB
}

// Open connects to dsn and migrates the schema. DSNs that look like
// postgres connection strings use postgres, anything else is a sqlite path
// (":memory:" included).
func Open(dsn string, log *zap.Logger) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	gl := zapgorm2.New(log)
	gl.IgnoreRecordNotFoundError = true
	gl.SlowThreshold = 200 * time.Millisecond

	config := &gorm.Config{
		Logger:         gl.LogMode(logger.Warn),
		TranslateError: true,
	}

	postgresDSN := isPostgres(dsn)
	dialector := sqlite.Open(dsn)
	if postgresDSN {
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, err
	}

	if !postgresDSN {
		// Every sqlite connection to ":memory:" is its own database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to run auto-migration: %w", err)
	}

	return &Store{db: db}, nil
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}

// AutoMigrate creates or updates every table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&minesduel.Match{},
		&minesduel.Player{},
		&minesduel.Step{},
		&User{},
	)
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Tx runs fn in a database transaction.
func (s *Store) Tx(ctx context.Context, fn func(match.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&txn{db: tx})
	})
}

func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return minesduel.NotFoundf(format, args...)
	}
	return err
}
