package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// DB is the subset of sqlx.DB the record store depends on.
type DB interface {
	Close() error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	Ping() error
	PingContext(ctx context.Context) error
	QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	SetConnMaxLifetime(d time.Duration)
	SetMaxIdleConns(n int)
	SetMaxOpenConns(n int)
	Stats() sql.DBStats
	Unwrap() *sqlx.DB
}

type DatabaseInstance struct {
	*sqlx.DB
	logger ectologger.Logger
}

func NewDatabaseInstance(db *sqlx.DB, logger ectologger.Logger) DB {
	return &DatabaseInstance{
		DB:     db,
		logger: logger,
	}
}

func (db *DatabaseInstance) Unwrap() *sqlx.DB {
	return db.DB
}

// ConnectionConfig holds the settings needed to open a Postgres connection pool.
type ConnectionConfig struct {
	Driver          string
	Host            string
	Port            string
	UserName        string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Connect opens and pings a connection pool using the given configuration.
func Connect(ctx context.Context, cfg ConnectionConfig, logger ectologger.Logger) (DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.UserName, cfg.Password, cfg.Name, cfg.SSLMode,
	)

	sqlxDB, err := sqlx.ConnectContext(ctx, cfg.Driver, dsn)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to database")
		return nil, fmt.Errorf("failed to connect to database %s: %w", cfg.Name, err)
	}

	sqlxDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlxDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlxDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return NewDatabaseInstance(sqlxDB, logger), nil
}
