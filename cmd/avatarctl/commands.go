package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"avatarchat/internal/logging"
	"avatarchat/internal/providers/heygen"
	"avatarchat/internal/proxy"
	"avatarchat/internal/telemetry"
)

var listen = net.Listen

func (c *cli) serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the credential proxy without the desktop UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = c.cfg.Proxy.ListenAddr
			}

			shutdown, err := telemetry.Setup(c.cfg.Tracing.Stdout, cmd.ErrOrStderr())
			if err != nil {
				return fmt.Errorf("setup tracing: %w", err)
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdown(ctx)
			}()

			vendor := heygen.NewClient(heygen.Config{
				APIKey:     c.cfg.HeyGen.APIKey,
				APIBaseURL: c.cfg.HeyGen.APIBaseURL,
				Logger:     logging.Component(c.logger, "heygen"),
			})
			if !vendor.HasAPIKey() {
				c.logger.Warn().Msg("HEYGEN_API_KEY is not set; token requests will fail")
			}

			ln, err := listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", addr, err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return proxy.New(vendor, logging.Component(c.logger, "proxy")).Serve(ctx, ln)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default PROXY_LISTEN_ADDR)")
	return cmd
}

func (c *cli) tokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Fetch a streaming access token through the proxy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := c.client().IssueToken(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, token)
			return nil
		},
	}
}

func (c *cli) sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and stop vendor streaming sessions",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List live vendor sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := c.client().ListSessions(cmd.Context())
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(c.out, "No active sessions")
				return nil
			}

			tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SESSION\tSTATUS\tCREATED")
			for _, s := range sessions {
				created := "-"
				if s.CreatedAt > 0 {
					created = time.Unix(s.CreatedAt, 0).UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", s.SessionID, s.Status, created)
			}
			return tw.Flush()
		},
	}

	stop := &cobra.Command{
		Use:   "stop <session-id>",
		Short: "Stop a vendor session by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := c.client().StopSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, string(payload))
			return nil
		},
	}

	cmd.AddCommand(list, stop)
	return cmd
}

func (c *cli) client() *proxy.Client {
	return proxy.NewClient(c.proxyURL, nil)
}
