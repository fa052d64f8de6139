package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/nice-pea/npc/internal/client"
	"github.com/nice-pea/npc/internal/models"
	"github.com/nice-pea/npc/internal/session"
	"github.com/spf13/cobra"
)

// startCmd runs the start-up check against the stored credentials.
func (c *cli) startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Check the stored session and report where to go next",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res := c.app.flow.CheckAuthn(cmd.Context())
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "state: %s\nroute: %s\n", res.State, res.Route)
			if res.User != nil {
				fmt.Fprintf(out, "user: %s (%d)\n", res.User.Username, res.User.ID)
			}
			if res.State == session.CheckFailed {
				return errorf(res)
			}
			return nil
		},
	}
}

func (c *cli) healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that a server is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			server, err := c.app.server(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			if err := c.app.flow.CheckConn(cmd.Context(), server); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is up\n", server)
			return nil
		},
	}
}

func (c *cli) loginCmd() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with an access key and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			server, err := c.app.server(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			res := c.app.flow.Login(cmd.Context(), server, key)
			if res.Err != nil {
				return fmt.Errorf("login: %s", res.Message())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", res.User.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "Access key")
	return cmd
}

func (c *cli) chatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chats",
		Short: "List chats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			chats, err := c.app.flow.Chats(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tLAST MESSAGE")
			for _, ch := range chats {
				last := ""
				if ch.LastMessage != nil {
					last = messageLine(ch.LastMessage)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", ch.ID, ch.Name, last)
			}
			return w.Flush()
		},
	}
}

func (c *cli) messagesCmd() *cobra.Command {
	var q client.MessagesQuery

	cmd := &cobra.Command{
		Use:   "messages",
		Short: "List messages of a chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if q.ChatID <= 0 {
				return fmt.Errorf("--chat is required")
			}
			msgs, err := c.app.flow.Messages(cmd.Context(), q)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for i := range msgs {
				m := &msgs[i]
				fmt.Fprintf(w, "%d\t%s\t%s\n", m.ID, m.CreatedAt.Format("2006-01-02 15:04"), messageLine(m))
			}
			return w.Flush()
		},
	}
	cmd.Flags().Int64Var(&q.ChatID, "chat", 0, "Chat id")
	cmd.Flags().Int64Var(&q.BeforeID, "before", 0, "Only messages older than this id")
	cmd.Flags().IntVar(&q.Limit, "limit", 0, "Maximum number of messages")
	return cmd
}

func (c *cli) prefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Read and write stored preferences",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get NAMESPACE KEY",
		Short: "Print a stored value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := c.app.prefs.Get(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}, &cobra.Command{
		Use:   "set NAMESPACE KEY VALUE",
		Short: "Store a value",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.prefs.Set(cmd.Context(), args[0], args[1], args[2])
		},
	})
	return cmd
}

func messageLine(m *models.Message) string {
	author := fmt.Sprintf("#%d", m.AuthorID)
	if m.Author != nil {
		author = m.Author.Username
	}
	if m.IsRemoved() {
		return author + ": (removed)"
	}
	return author + ": " + m.Text
}
