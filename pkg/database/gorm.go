package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PoolConfig sizes the shared connection pool. The dunning worker and the
// API usually run with different sizes.
type PoolConfig struct {
	MaxIdle     int
	MaxOpen     int
	MaxLifetime time.Duration
}

var DefaultPool = PoolConfig{MaxIdle: 10, MaxOpen: 100, MaxLifetime: time.Hour}

func newLogger(verbose bool) logger.Interface {
	level := logger.Warn
	if verbose {
		level = logger.Info
	}
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true, // keep customer emails out of the SQL log
			Colorful:                  verbose,
		},
	)
}

// Open connects to Postgres, sizes the pool and pings once.
// Unique violations surface as gorm.ErrDuplicatedKey.
func Open(dsn string, verbose bool, pool PoolConfig) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database: empty DSN")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         newLogger(verbose),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(pool.MaxIdle)
	sqlDB.SetMaxOpenConns(pool.MaxOpen)
	sqlDB.SetConnMaxLifetime(pool.MaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database: ping: %w", err)
	}
	return db, nil
}

// NewGormDBFromDSN opens a connection with the default pool.
func NewGormDBFromDSN(dsn string, verbose bool) (*gorm.DB, error) {
	return Open(dsn, verbose, DefaultPool)
}
