// Command avatarctl runs the credential proxy headless and inspects vendor
// sessions through it.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"avatarchat/internal/config"
	"avatarchat/internal/logging"
)

var version = "dev"

// cli carries state shared by subcommands after the root pre-run.
type cli struct {
	out    io.Writer
	cfg    config.Config
	logger zerolog.Logger

	proxyURL string
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	root := &cobra.Command{
		Use:           "avatarctl",
		Short:         "Credential proxy and session tools for the avatar chat",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			c.cfg = cfg
			c.logger = logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cmd.ErrOrStderr()})
			if c.proxyURL == "" {
				c.proxyURL = cfg.Proxy.BaseURL
			}
			return nil
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&c.proxyURL, "proxy", "", "credential proxy base URL (default PROXY_BASE_URL)")

	root.AddCommand(
		c.serveCmd(),
		c.tokenCmd(),
		c.sessionsCmd(),
	)
	return root
}
