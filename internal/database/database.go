package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"
	"github.com/nice-pea/npc/internal/config"
)

const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

var ErrNotFound = errors.New("not found")

// DB is the server's SQL store. Queries are written with ? placeholders and
// rebound for the configured dialect.
type DB struct {
	conn   *sql.DB
	dbType string
	log    *slog.Logger
}

// Open connects to the configured database and applies pending migrations.
func Open(cfg config.DatabaseConfig, log *slog.Logger) (*DB, error) {
	const op = "database.Open"

	var (
		conn *sql.DB
		err  error
	)
	switch cfg.Type {
	case TypePostgres:
		conn, err = initPostgreSQL(cfg)
	case TypeSQLite, "":
		cfg.Type = TypeSQLite
		conn, err = initSQLite(cfg)
	default:
		return nil, fmt.Errorf("%s: unsupported database type: %s", op, cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	if err := RunMigrations(conn, cfg.Type, log); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("database ready", slog.String("type", cfg.Type))
	return &DB{conn: conn, dbType: cfg.Type, log: log}, nil
}

func initPostgreSQL(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	if cfg.ConnMaxLifetime != "" && cfg.ConnMaxLifetime != "0" {
		if d, err := time.ParseDuration(cfg.ConnMaxLifetime); err == nil {
			db.SetConnMaxLifetime(d)
		}
	}
	return db, nil
}

func initSQLite(cfg config.DatabaseConfig) (*sql.DB, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", cfg.Path)
	if cfg.WALMode {
		dsn += "&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) Type() string {
	return d.dbType
}

// Ping is used by the health endpoint.
func (d *DB) Ping(ctx context.Context) error {
	return d.conn.PingContext(ctx)
}

// rebind rewrites ? placeholders as $1, $2, ... for postgres.
func (d *DB) rebind(query string) string {
	return rebind(d.dbType, query)
}

func rebind(dbType, query string) string {
	if dbType != TypePostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
