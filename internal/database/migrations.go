package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// Migration is one versioned schema change. SQL may hold several
// statements separated by semicolons.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all migrations for the dialect, in order.
func GetMigrations(dbType string) []Migration {
	if dbType == TypePostgres {
		return getPostgresMigrations()
	}
	return getSQLiteMigrations()
}

func getPostgresMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `CREATE TABLE IF NOT EXISTS users (
				id BIGSERIAL PRIMARY KEY,
				username VARCHAR(64) UNIQUE NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			)`,
		},
		{
			Version:     2,
			Description: "Create credentials table",
			SQL: `CREATE TABLE IF NOT EXISTS credentials (
				id BIGSERIAL PRIMARY KEY,
				user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				key_id VARCHAR(32) UNIQUE NOT NULL,
				key_hash VARCHAR(255) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			)`,
		},
		{
			Version:     3,
			Description: "Create sessions table",
			SQL: `CREATE TABLE IF NOT EXISTS sessions (
				id UUID PRIMARY KEY,
				user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				expires_at TIMESTAMP WITH TIME ZONE NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id)`,
		},
		{
			Version:     4,
			Description: "Create chats and members tables",
			SQL: `CREATE TABLE IF NOT EXISTS chats (
				id BIGSERIAL PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				creator_id BIGINT NOT NULL REFERENCES users(id),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);
			CREATE TABLE IF NOT EXISTS members (
				id BIGSERIAL PRIMARY KEY,
				chat_id BIGINT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
				user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				UNIQUE (chat_id, user_id)
			);
			CREATE INDEX IF NOT EXISTS idx_members_user_id ON members(user_id)`,
		},
		{
			Version:     5,
			Description: "Create messages table",
			SQL: `CREATE TABLE IF NOT EXISTS messages (
				id BIGSERIAL PRIMARY KEY,
				chat_id BIGINT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
				author_id BIGINT NOT NULL REFERENCES users(id),
				text TEXT NOT NULL,
				reply_to_id BIGINT REFERENCES messages(id),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				edited_at TIMESTAMP WITH TIME ZONE,
				removed_at TIMESTAMP WITH TIME ZONE
			);
			CREATE INDEX IF NOT EXISTS idx_messages_chat_id ON messages(chat_id, id)`,
		},
	}
}

func getSQLiteMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `CREATE TABLE IF NOT EXISTS users (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				username TEXT UNIQUE NOT NULL,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
		},
		{
			Version:     2,
			Description: "Create credentials table",
			SQL: `CREATE TABLE IF NOT EXISTS credentials (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				key_id TEXT UNIQUE NOT NULL,
				key_hash TEXT NOT NULL,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
		},
		{
			Version:     3,
			Description: "Create sessions table",
			SQL: `CREATE TABLE IF NOT EXISTS sessions (
				id TEXT PRIMARY KEY,
				user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				expires_at DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id)`,
		},
		{
			Version:     4,
			Description: "Create chats and members tables",
			SQL: `CREATE TABLE IF NOT EXISTS chats (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				creator_id INTEGER NOT NULL REFERENCES users(id),
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE TABLE IF NOT EXISTS members (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				chat_id INTEGER NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
				user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				UNIQUE (chat_id, user_id)
			);
			CREATE INDEX IF NOT EXISTS idx_members_user_id ON members(user_id)`,
		},
		{
			Version:     5,
			Description: "Create messages table",
			SQL: `CREATE TABLE IF NOT EXISTS messages (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				chat_id INTEGER NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
				author_id INTEGER NOT NULL REFERENCES users(id),
				text TEXT NOT NULL,
				reply_to_id INTEGER REFERENCES messages(id),
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				edited_at DATETIME,
				removed_at DATETIME
			);
			CREATE INDEX IF NOT EXISTS idx_messages_chat_id ON messages(chat_id, id)`,
		},
	}
}

func createMigrationsTable(db *sql.DB, dbType string) error {
	query := `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`
	if dbType == TypePostgres {
		query = `CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`
	}
	_, err := db.Exec(query)
	return err
}

func getAppliedMigrations(db *sql.DB) (map[int]bool, error) {
	applied := make(map[int]bool)

	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// RunMigrations applies every migration not yet recorded in schema_migrations.
// Each migration and its record commit in one transaction.
func RunMigrations(db *sql.DB, dbType string, log *slog.Logger) error {
	if err := createMigrationsTable(db, dbType); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	applied, err := getAppliedMigrations(db)
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range GetMigrations(dbType) {
		if applied[m.Version] {
			continue
		}

		log.Info("applying migration", slog.Int("version", m.Version), slog.String("description", m.Description))
		if err := applyMigration(db, dbType, m); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.Version, err)
		}
	}
	return nil
}

func applyMigration(db *sql.DB, dbType string, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range strings.Split(m.SQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(rebind(dbType, "INSERT INTO schema_migrations (version) VALUES (?)"), m.Version); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}

// SchemaVersion returns the highest applied migration version, 0 when none.
func (d *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v sql.NullInt64
	if err := d.conn.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&v); err != nil {
		return 0, fmt.Errorf("database.SchemaVersion: %w", err)
	}
	return int(v.Int64), nil
}
