package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pressly/goose/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/config"
	"github.com/Additional-Code/orderdesk/internal/database"
)

// SchemaVersion is the goose version that creates the order tables.
const SchemaVersion int64 = 1

// Module provides the migrator to Fx.
var Module = fx.Provide(New)

// Migrator versions the order schema with goose. Version SchemaVersion builds
// the tables through bun so every driver gets its own column types; SQL files
// from an optional directory are applied on top of it.
type Migrator struct {
	conns   *database.Connections
	dialect goose.Dialect
	dir     string
	logger  *zap.Logger
}

// New returns a migrator for the relational order store.
func New(conns *database.Connections, logger *zap.Logger) (*Migrator, error) {
	if !conns.Relational() {
		return nil, fmt.Errorf("migrations: %w", database.ErrNoRelationalStore)
	}

	dialect, err := gooseDialect(conns.Driver)
	if err != nil {
		return nil, err
	}

	return &Migrator{conns: conns, dialect: dialect, logger: logger}, nil
}

// WithDir layers the numbered *.sql migrations in dir over the order schema.
// Their versions must be greater than SchemaVersion.
func (m *Migrator) WithDir(dir string) *Migrator {
	m.dir = dir
	return m
}

// Up applies every pending migration and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	p, err := m.provider()
	if err != nil {
		return 0, err
	}

	results, err := p.Up(ctx)
	for _, res := range results {
		m.logResult(res)
	}
	if err != nil {
		return len(results), err
	}

	if len(results) == 0 {
		m.logger.Info("order schema up to date")
	}
	return len(results), nil
}

// Down rolls back the latest steps migrations, at least one, or all of them.
// It returns how many were rolled back.
func (m *Migrator) Down(ctx context.Context, steps int, all bool) (int, error) {
	p, err := m.provider()
	if err != nil {
		return 0, err
	}

	if all {
		results, err := p.DownTo(ctx, 0)
		for _, res := range results {
			m.logResult(res)
		}
		return len(results), err
	}

	if steps <= 0 {
		steps = 1
	}

	done := 0
	for ; done < steps; done++ {
		res, err := p.Down(ctx)
		if errors.Is(err, goose.ErrNoNextVersion) {
			m.logger.Info("no migrations to roll back")
			break
		}
		if err != nil {
			return done, err
		}
		m.logResult(res)
	}
	return done, nil
}

// Version returns the latest applied migration version, zero when none ran.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	p, err := m.provider()
	if err != nil {
		return 0, err
	}
	return p.GetDBVersion(ctx)
}

// provider is rebuilt per call; goose providers close the pool they are given
// on Close, so it is never closed here.
func (m *Migrator) provider() (*goose.Provider, error) {
	var fsys fs.FS
	if m.dir != "" {
		if _, err := os.Stat(m.dir); err != nil {
			return nil, fmt.Errorf("migrations dir: %w", err)
		}
		fsys = os.DirFS(m.dir)
	}

	return goose.NewProvider(m.dialect, m.conns.Writer.DB, fsys,
		goose.WithDisableGlobalRegistry(true),
		goose.WithGoMigrations(m.schemaMigration()),
	)
}

func (m *Migrator) schemaMigration() *goose.Migration {
	db := m.conns.Writer
	return goose.NewGoMigration(SchemaVersion,
		&goose.GoFunc{RunTx: func(ctx context.Context, tx *sql.Tx) error {
			return database.CreateSchemaConn(ctx, db, tx)
		}},
		&goose.GoFunc{RunTx: func(ctx context.Context, tx *sql.Tx) error {
			return database.DropSchemaConn(ctx, db, tx)
		}},
	)
}

func (m *Migrator) logResult(res *goose.MigrationResult) {
	if res == nil || res.Source == nil {
		return
	}
	fields := []zap.Field{
		zap.String("direction", res.Direction),
		zap.Int64("version", res.Source.Version),
		zap.Duration("took", res.Duration),
	}
	if res.Error != nil {
		m.logger.Error("migration failed", append(fields, zap.Error(res.Error))...)
		return
	}
	m.logger.Info("migration applied", fields...)
}

func gooseDialect(driver string) (goose.Dialect, error) {
	switch driver {
	case config.DriverPostgres:
		return goose.DialectPostgres, nil
	case config.DriverMySQL:
		return goose.DialectMySQL, nil
	case config.DriverSQLite:
		return goose.DialectSQLite3, nil
	default:
		return "", fmt.Errorf("no migration dialect for driver %s", driver)
	}
}
