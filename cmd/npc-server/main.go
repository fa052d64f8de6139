package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nice-pea/npc/internal/api"
	"github.com/nice-pea/npc/internal/auth"
	"github.com/nice-pea/npc/internal/config"
	"github.com/nice-pea/npc/internal/database"
	"github.com/nice-pea/npc/internal/logging"
	"github.com/spf13/pflag"
)

const version = "0.1.0"

type seedOptions struct {
	User string
	Key  string
	Chat string
}

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("npc-server", pflag.ContinueOnError)
	flags.String("config", "npc.yml", "Path to configuration file")
	flags.String("env", "", "Environment: local or prod")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.Int("port", 0, "Port to listen on")
	flags.String("db-type", "", "Database type: sqlite or postgres")
	flags.String("db-path", "", "SQLite database file")
	flags.String("db-dsn", "", "PostgreSQL connection string")
	flags.String("secret", "", "Session token signing secret")
	flags.String("seed-user", "", "Create this user on startup if missing")
	flags.String("seed-key", "", "Login key for --seed-user; generated when empty")
	flags.String("seed-chat", "", "Create a chat owned by --seed-user")
	return flags
}

// initializeAPI opens the database and builds the API from cfg. The caller
// owns the returned database.
func initializeAPI(cfg *config.Config, log *slog.Logger) (*api.Api, *database.DB, error) {
	if err := cfg.Server.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid server config: %w", err)
	}

	db, err := database.Open(cfg.Server.Database, log)
	if err != nil {
		return nil, nil, err
	}

	svc := auth.NewService(db, auth.NewTokenManager(cfg.Server.Auth.Secret), cfg.Server.Auth.SessionTTL)
	a, err := api.NewApi(cfg.Server, db, svc, log)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return a, db, nil
}

// seed makes sure opts.User exists and can log in with a key, and optionally
// owns a chat. It returns the key, which is generated when opts.Key is empty.
func seed(ctx context.Context, db *database.DB, opts seedOptions) (string, error) {
	const op = "main.seed"

	if err := auth.ValidateUsername(opts.User); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	u, err := db.GetUserByUsername(ctx, opts.User)
	if errors.Is(err, database.ErrNotFound) {
		u, err = db.CreateUser(ctx, opts.User)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	key := opts.Key
	if key == "" {
		if key, err = auth.GenerateKey(); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
	}

	_, err = db.GetCredentialByKeyID(ctx, auth.KeyID(key))
	switch {
	case errors.Is(err, database.ErrNotFound):
		hash, err := auth.HashKey(key)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		if _, err := db.CreateCredential(ctx, u.ID, auth.KeyID(key), hash); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
	case err != nil:
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if opts.Chat != "" {
		_, err := db.FindChat(ctx, opts.Chat, u.ID)
		if errors.Is(err, database.ErrNotFound) {
			_, err = db.CreateChat(ctx, opts.Chat, u.ID)
		}
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
	}
	return key, nil
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	flags := newFlagSet()
	if err := flags.Parse(args); err != nil {
		return err
	}
	configPath, _ := flags.GetString("config")

	cfg, err := config.LoadConfig(configPath, flags)
	if err != nil {
		return err
	}

	log := logging.New(cfg.Env, cfg.Log.Level, stdout)
	log.Info("starting npc-server", slog.String("version", version), slog.String("config", configPath))

	a, db, err := initializeAPI(cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if user, _ := flags.GetString("seed-user"); user != "" {
		opts := seedOptions{User: user}
		opts.Key, _ = flags.GetString("seed-key")
		opts.Chat, _ = flags.GetString("seed-chat")

		key, err := seed(ctx, db, opts)
		if err != nil {
			return err
		}
		if opts.Key == "" {
			fmt.Fprintf(stdout, "login key for %s: %s\n", user, key)
		}
		log.Info("seeded user", slog.String("username", user))
	}

	return a.Serve(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		slog.Error("npc-server failed", logging.Err(err))
		os.Exit(1)
	}
}
