package registry

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

// NewDB opens the registry database and makes sure the schema exists. The
// registry is a single-writer sqlite file under the atelier home.
func NewDB(ctx context.Context, dbFile string, verbose bool) (*bun.DB, error) {
	dsn := fmt.Sprintf("file:%s?cache=shared", dbFile)

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry database: %w", err)
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	db.AddQueryHook(bundebug.NewQueryHook(
		bundebug.WithEnabled(verbose),
		bundebug.FromEnv("BUNDEBUG"),
	))

	if err := ensureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func ensureSchema(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewCreateTable().Model((*InstalledModel)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create installed_models table: %w", err)
	}

	return nil
}
