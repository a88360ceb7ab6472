package database

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver, registered as "pgx"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // SQLite driver, registered as "sqlite"
)

//go:embed schema.sql
var schema string

// driverNames maps the configured DATABASE_DRIVER to the database/sql driver name.
var driverNames = map[string]string{
	"sqlite":   "sqlite",
	"postgres": "pgx",
}

// New opens a connection pool for the given driver and verifies it is reachable.
func New(driver, dataSourceName string, maxOpen int) (*sqlx.DB, error) {
	name, ok := driverNames[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	dsn := dataSourceName
	if driver == "sqlite" {
		dsn = sqliteDSN(dataSourceName)
		// SQLite serializes writers; one connection avoids SQLITE_BUSY under concurrent requests.
		maxOpen = 1
	}

	db, err := sqlx.Open(name, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach %s database: %w", driver, err)
	}
	return db, nil
}

// Migrate runs the SQL statements to set up the database schema.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

func sqliteDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
}
