// Command test-db checks that the configured npc-server database can be
// opened, migrated and pinged.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nice-pea/npc/internal/config"
	"github.com/nice-pea/npc/internal/database"
	"github.com/nice-pea/npc/internal/logging"
	"github.com/spf13/pflag"
)

func check(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger, out io.Writer) error {
	if cfg.Type == database.TypeSQLite {
		dir := filepath.Dir(cfg.Path)
		if stat, err := os.Stat(dir); err != nil {
			log.Warn("cannot access database directory", slog.String("dir", dir), logging.Err(err))
		} else {
			log.Info("database directory", slog.String("dir", dir), slog.String("mode", stat.Mode().String()))
		}
	}

	db, err := database.Open(cfg, log)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	version, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s database ok, schema version %d\n", db.Type(), version)
	return nil
}

func main() {
	flags := pflag.NewFlagSet("test-db", pflag.ExitOnError)
	flags.String("config", "npc.yml", "Path to configuration file")
	flags.String("db-type", "", "Database type: sqlite or postgres")
	flags.String("db-path", "", "SQLite database file")
	flags.String("db-dsn", "", "PostgreSQL connection string")
	flags.Parse(os.Args[1:])
	configPath, _ := flags.GetString("config")

	cfg, err := config.LoadConfig(configPath, flags)
	if err != nil {
		slog.Error("failed to load config", logging.Err(err))
		os.Exit(1)
	}
	log := logging.New(cfg.Env, cfg.Log.Level, os.Stderr)

	if err := check(context.Background(), cfg.Server.Database, log, os.Stdout); err != nil {
		log.Error("database check failed", logging.Err(err))
		os.Exit(1)
	}
}
