// Package database opens the registration store selected by DB_DRIVER.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ms-registration/internal/config"
	"ms-registration/internal/database/migrations"
	"ms-registration/internal/logger"
	"ms-registration/internal/registration"
	regdb "ms-registration/internal/registration/db"
	"ms-registration/internal/registration/docstore"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

// RegistrationStore is both the seat ledger and the registration store.
type RegistrationStore interface {
	registration.Ledger
	registration.Store
}

type Backend struct {
	Driver string
	Store  RegistrationStore
	close  func() error
}

func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// Open connects to the configured driver and prepares its schema.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*Backend, error) {
	switch cfg.Driver {
	case DriverPostgres:
		bunDB, err := ConnectPostgres(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			runner := migrations.NewRunner(bunDB, log)
			err := runner.RunMigrations()
			if closeErr := runner.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				bunDB.Close()
				return nil, err
			}
		}
		return &Backend{Driver: cfg.Driver, Store: &regdb.DB{Bun: bunDB}, close: bunDB.Close}, nil

	case DriverSQLite:
		bunDB, err := ConnectSQLite(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return &Backend{Driver: cfg.Driver, Store: &regdb.DB{Bun: bunDB}, close: bunDB.Close}, nil

	case DriverMongo:
		client, err := ConnectMongo(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		store := docstore.New(client.Database(cfg.MongoDatabase))
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		closeFn := func() error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return client.Disconnect(shutdownCtx)
		}
		return &Backend{Driver: cfg.Driver, Store: store, close: closeFn}, nil
	}
	return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.Driver)
}

func retryPolicy(ctx context.Context, retries int) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.MaxInterval = 10 * time.Second
	if retries < 1 {
		retries = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries-1)), ctx)
}

// ConnectPostgres opens the pool and pings it until it answers or
// ConnectRetries attempts have failed.
func ConnectPostgres(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	sqldb, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	attempt := 0
	ping := func() error {
		attempt++
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", attempt, cfg.ConnectRetries))
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return sqldb.PingContext(pingCtx)
	}
	notify := func(err error, wait time.Duration) {
		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v (retrying in %s)", err, wait))
	}
	if err := backoff.RetryNotify(ping, retryPolicy(ctx, cfg.ConnectRetries), notify); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("connect postgres after %d attempts: %w", attempt, err)
	}

	log.Info("DATABASE", "✅ PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// ConnectSQLite opens the file or in-memory database and creates the schema.
// SQLite allows one writer, so the pool is capped at one connection.
func ConnectSQLite(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.SQLiteDSN)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	if err := regdb.CreateSchema(ctx, bunDB); err != nil {
		bunDB.Close()
		return nil, err
	}
	log.Info("DATABASE", fmt.Sprintf("✅ SQLite ready at %s", cfg.SQLiteDSN))
	return bunDB, nil
}

func ConnectMongo(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(cfg.MongoURI).
		SetMaxPoolSize(uint64(max(cfg.MaxOpenConns, 1)))

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	ping := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return client.Ping(pingCtx, nil)
	}
	notify := func(err error, wait time.Duration) {
		log.Error("DATABASE", fmt.Sprintf("Failed to reach MongoDB: %v (retrying in %s)", err, wait))
	}
	if err := backoff.RetryNotify(ping, retryPolicy(ctx, cfg.ConnectRetries), notify); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	log.Info("DATABASE", fmt.Sprintf("✅ MongoDB connection successful (database %s)", cfg.MongoDatabase))
	return client, nil
}
