package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/nice-pea/npc/internal/client"
	"github.com/nice-pea/npc/internal/config"
	"github.com/nice-pea/npc/internal/logging"
	"github.com/nice-pea/npc/internal/session"
	"github.com/nice-pea/npc/internal/store"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

// app is what every subcommand works with. It is built once flags are parsed.
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	prefs  store.Store
	client *client.Client
	flow   *session.Flow
}

func newApp(cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(configPath, cmd.Flags())
	if err != nil {
		return nil, err
	}

	log := logging.New(cfg.Env, cfg.Log.Level, cmd.ErrOrStderr())

	var prefs store.Store
	if cfg.Client.Ephemeral {
		prefs = store.NewMemoryStore()
	} else {
		s, err := store.OpenSQLite(cfg.Client.PrefsPath)
		if err != nil {
			return nil, err
		}
		prefs = s
	}

	c := client.New(client.Options{
		BaseURL:   store.NewClientStore(prefs),
		Token:     store.NewAuthStore(prefs),
		Attempts:  cfg.Client.RetryAttempts,
		Timeout:   cfg.Client.Timeout,
		UserAgent: "npc/" + version,
		Log:       log,
	})

	return &app{
		cfg:    cfg,
		log:    log,
		prefs:  prefs,
		client: c,
		flow:   session.New(c, prefs, log),
	}, nil
}

func (a *app) Close() error {
	return a.prefs.Close()
}

// server picks the server for explicit-server calls: the --server flag when
// given, otherwise the stored base URL, otherwise the configured default.
func (a *app) server(ctx context.Context, cmd *cobra.Command) (string, error) {
	if cmd.Flags().Changed("server") {
		return a.cfg.Client.DefaultServer, nil
	}
	stored, err := store.NewClientStore(a.prefs).BaseURL(ctx)
	if err != nil {
		return "", err
	}
	s := client.ResolveBaseURL(stored, a.cfg.Client.DefaultServer)
	if s == client.Placeholder {
		return "", errors.New("no server given, pass --server")
	}
	return s, nil
}

// cli owns the app for one invocation so it can be closed after the
// command ran, including when it failed.
type cli struct {
	app *app
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "npc",
		Short:         "nice-pea-chat client",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			c.app = a
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "Path to configuration file")
	pf.String("prefs", "", "Path to the preferences database")
	pf.Bool("ephemeral", false, "Keep preferences in memory only")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("server", "", "Server base URL, e.g. http://10.0.2.2:7511")
	pf.Duration("timeout", 0, "Per attempt request timeout")

	root.AddCommand(
		c.startCmd(),
		c.healthCmd(),
		c.loginCmd(),
		c.chatsCmd(),
		c.messagesCmd(),
		c.prefsCmd(),
	)
	return root
}

// execute runs npc with args and closes whatever the command opened.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	c := &cli{}
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if c.app != nil {
		err = errors.Join(err, c.app.Close())
	}
	return err
}

func errorf(res session.Result) error {
	return fmt.Errorf("%s: %s", res.State, res.Message())
}
