// Package database provides database connection management.
package database

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"path"
	"slices"
	"strconv"
	"time"

	"github.com/avast/retry-go"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/at-ishikawa/studydeck/internal/config"
	"github.com/at-ishikawa/studydeck/schemas"
)

func init() {
	// sqlx only knows the mattn driver name for sqlite.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Open opens a connection for driver, which is one of mysql, postgres or
// sqlite. It does not contact the server.
func Open(driver string, cfg config.DatabaseConfig, sqliteFile string) (*sqlx.DB, error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch driver {
	case config.StorageMySQL:
		db, err = sqlx.Open("mysql", mysqlDSN(cfg))
	case config.StoragePostgres:
		db, err = sqlx.Open("postgres", postgresDSN(cfg))
	case config.StorageSQLite:
		db, err = sqlx.Open("sqlite", sqliteDSN(sqliteFile))
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open database connection: %w", err)
	}

	if driver == config.StorageSQLite {
		// A single writer avoids SQLITE_BUSY between pooled connections.
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	return db, nil
}

func mysqlDSN(cfg config.DatabaseConfig) string {
	mysqlCfg := mysql.NewConfig()
	mysqlCfg.User = cfg.Username
	mysqlCfg.Passwd = cfg.Password
	mysqlCfg.Net = "tcp"
	mysqlCfg.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mysqlCfg.DBName = cfg.Database
	mysqlCfg.ParseTime = true
	mysqlCfg.MultiStatements = true
	if cfg.TLS {
		mysqlCfg.TLSConfig = "true"
	}
	if len(cfg.Params) > 0 {
		mysqlCfg.Params = cfg.Params
	}
	return mysqlCfg.FormatDSN()
}

func postgresDSN(cfg config.DatabaseConfig) string {
	query := url.Values{}
	for key, value := range cfg.Params {
		query.Set(key, value)
	}
	if cfg.TLS {
		query.Set("sslmode", "require")
	} else if !query.Has("sslmode") {
		query.Set("sslmode", "disable")
	}

	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     fmt.Sprintf("%s:%s", cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Database,
		RawQuery: query.Encode(),
	}
	return dsn.String()
}

func sqliteDSN(file string) string {
	return "file:" + file + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Connect opens the database and pings it until it answers or
// cfg.ConnectAttempts pings have failed.
func Connect(ctx context.Context, driver string, cfg config.DatabaseConfig, sqliteFile string) (*sqlx.DB, error) {
	db, err := Open(driver, cfg, sqliteFile)
	if err != nil {
		return nil, err
	}

	attempts := max(cfg.ConnectAttempts, 1)
	if err := retry.Do(
		func() error {
			return db.PingContext(ctx)
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("database is not ready", "driver", driver, "attempt", n+1, "error", err)
		}),
	); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate applies the embedded migrations for the driver of db in file name
// order. Every migration is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	return migrate(ctx, db, schemas.Migrations)
}

func migrate(ctx context.Context, db *sqlx.DB, fsys fs.FS) error {
	dir := path.Join("migrations", db.DriverName())
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("fs.ReadDir(%s) > %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && path.Ext(entry.Name()) == ".sql" {
			names = append(names, entry.Name())
		}
	}
	slices.Sort(names)

	for _, name := range names {
		content, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return fmt.Errorf("fs.ReadFile(%s) > %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		slog.Debug("applied migration", "driver", db.DriverName(), "file", name)
	}
	return nil
}

// RunInTx runs fn within a database transaction.
// If fn returns an error, the transaction is rolled back; otherwise, it is committed.
func RunInTx(ctx context.Context, db *sqlx.DB, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback transaction: %w (original error: %v)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
