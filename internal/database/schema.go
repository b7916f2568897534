package database

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/Additional-Code/orderdesk/internal/entity"
)

// models lists the tables owned by orderdesk in creation order.
var models = []any{
	(*entity.Order)(nil),
}

// CreateSchema creates the order tables with the column types of db's dialect,
// keeping tables that already exist.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	return CreateSchemaConn(ctx, db, db)
}

// CreateSchemaConn is CreateSchema issuing its statements over conn, which may
// be a transaction opened on db.
func CreateSchemaConn(ctx context.Context, db *bun.DB, conn bun.IConn) error {
	for _, model := range models {
		if _, err := db.NewCreateTable().Conn(conn).Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	return nil
}

// DropSchemaConn drops the order tables in reverse creation order.
func DropSchemaConn(ctx context.Context, db *bun.DB, conn bun.IConn) error {
	for i := len(models) - 1; i >= 0; i-- {
		if _, err := db.NewDropTable().Conn(conn).Model(models[i]).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("drop table for %T: %w", models[i], err)
		}
	}
	return nil
}
