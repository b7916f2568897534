package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/config"
)

// ErrNoRelationalStore is returned by consumers that need SQL access while the
// in-memory driver is configured.
var ErrNoRelationalStore = errors.New("database driver has no relational store")

// Connections bundles the writer and reader pools of the order store. Both are
// nil when the memory driver is configured.
type Connections struct {
	Driver string
	Writer *bun.DB
	Reader *bun.DB
}

// Relational reports whether SQL connections are available.
func (c *Connections) Relational() bool {
	return c != nil && c.Writer != nil
}

// Module registers the database connections with Fx.
var Module = fx.Provide(New)

type driver struct {
	dialect func() schema.Dialect
	open    func(dsn string) (*sql.DB, error)
}

var drivers = map[string]driver{
	config.DriverPostgres: {
		dialect: func() schema.Dialect { return pgdialect.New() },
		open: func(dsn string) (*sql.DB, error) {
			return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn))), nil
		},
	},
	config.DriverMySQL: {
		dialect: func() schema.Dialect { return mysqldialect.New() },
		open:    openMySQL,
	},
	config.DriverSQLite: {
		dialect: func() schema.Dialect { return sqlitedialect.New() },
		open: func(dsn string) (*sql.DB, error) {
			return sql.Open(sqliteshim.ShimName, dsn)
		},
	},
}

// New opens the order store for the configured driver and ties it to the Fx
// lifecycle. With AutoMigrate set the order schema is created on start.
func New(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*Connections, error) {
	if !cfg.Database.Relational() {
		logger.Info("orders kept in memory; skipping SQL connections")
		return &Connections{Driver: config.DriverMemory}, nil
	}

	conns, err := Open(cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := conns.Ping(ctx); err != nil {
				return err
			}
			logger.Info("database connected", zap.String("driver", conns.Driver))

			if cfg.Database.AutoMigrate {
				if err := CreateSchema(ctx, conns.Writer); err != nil {
					return fmt.Errorf("bootstrap order schema: %w", err)
				}
				logger.Info("order schema ready", zap.String("driver", conns.Driver))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return conns.Close()
		},
	})

	return conns, nil
}

// Open connects the writer pool and, when a distinct DSN is configured, the
// reader pool. Nothing is dialled until the first query or Ping.
func Open(cfg config.Database) (*Connections, error) {
	d, ok := drivers[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	writer, err := openPool(d, cfg, cfg.WriterDSN)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}

	conns := &Connections{Driver: cfg.Driver, Writer: writer, Reader: writer}
	if cfg.ReaderDSN != "" && cfg.ReaderDSN != cfg.WriterDSN {
		reader, err := openPool(d, cfg, cfg.ReaderDSN)
		if err != nil {
			_ = writer.Close()
			return nil, fmt.Errorf("open reader: %w", err)
		}
		conns.Reader = reader
	}
	return conns, nil
}

// Ping checks both pools answer within five seconds.
func (c *Connections) Ping(ctx context.Context) error {
	if !c.Relational() {
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.Writer.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping writer: %w", err)
	}
	if c.Reader != c.Writer {
		if err := c.Reader.PingContext(pingCtx); err != nil {
			return fmt.Errorf("ping reader: %w", err)
		}
	}
	return nil
}

// Close releases both pools.
func (c *Connections) Close() error {
	if !c.Relational() {
		return nil
	}
	var errs []error
	if err := c.Writer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close writer: %w", err))
	}
	if c.Reader != c.Writer {
		if err := c.Reader.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close reader: %w", err))
		}
	}
	return errors.Join(errs...)
}

func openPool(d driver, cfg config.Database, dsn string) (*bun.DB, error) {
	if dsn == "" {
		return nil, errors.New("empty DSN")
	}
	sqldb, err := d.open(dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxConnLifetime > 0 {
		sqldb.SetConnMaxLifetime(cfg.MaxConnLifetime)
	}
	return bun.NewDB(sqldb, d.dialect()), nil
}

func openMySQL(dsn string) (*sql.DB, error) {
	mcfg, err := mysqlConfig(dsn)
	if err != nil {
		return nil, err
	}
	connector, err := mysql.NewConnector(mcfg)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

// mysqlConfig makes UPDATE report matched rather than changed rows, so an
// order saved with unchanged values is not mistaken for a missing one, and
// scans DATETIME columns into time.Time.
func mysqlConfig(dsn string) (*mysql.Config, error) {
	mcfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	mcfg.ClientFoundRows = true
	mcfg.ParseTime = true
	return mcfg, nil
}
