package cli

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	roomclient "github.com/mcoot/roomchat/internal/client"
	"github.com/mcoot/roomchat/internal/transport"
)

func newConnectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect to the chat server and start an interactive session",
		Long: `Connect opens a TLS connection to the chat server and relays lines typed on
stdin. A cached session token for --client-id is tried first; use /login
<username> <password> when it is missing or has expired.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCfg := roomclient.DefaultConfig()
			clientCfg.Addr = cfg.Server
			clientCfg.ClientID = cfg.ClientID
			clientCfg.TokenDir = cfg.TokenDir

			if !cfg.Plain {
				host, _, err := net.SplitHostPort(cfg.Server)
				if err != nil {
					return fmt.Errorf("invalid server address %q: %w", cfg.Server, err)
				}
				tlsCfg, err := transport.ClientTLSConfig(host, cfg.CAFile, cfg.Insecure)
				if err != nil {
					return err
				}
				clientCfg.TLS = tlsCfg
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c := roomclient.New(clientCfg, cmd.InOrStdin(), cmd.OutOrStdout(), newLogger(cmd))
			return c.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&cfg.ClientID, "client-id", cfg.ClientID, "Identifier for the cached session token (env: ROOMCHAT_CLIENT_ID)")
	cmd.Flags().StringVar(&cfg.TokenDir, "token-dir", cfg.TokenDir, "Directory for cached session tokens (env: ROOMCHAT_TOKEN_DIR)")
	cmd.Flags().StringVar(&cfg.CAFile, "ca-file", cfg.CAFile, "PEM file with the server's CA certificate (env: ROOMCHAT_CA_FILE)")
	cmd.Flags().BoolVar(&cfg.Insecure, "insecure", cfg.Insecure, "Skip TLS certificate verification (env: ROOMCHAT_INSECURE)")
	cmd.Flags().BoolVar(&cfg.Plain, "plain", cfg.Plain, "Use plain TCP instead of TLS")

	return cmd
}

// newLogger writes client diagnostics to stderr, away from the chat transcript
func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}
