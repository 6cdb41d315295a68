package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfg    *Config
	client *Client
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "roomchat",
		Short: "Client for the roomchat server",
		Long: `roomchat connects to a roomchat server over TLS and relays chat commands
from the terminal. The last session token is cached per client ID so a restarted
client is reconnected to its room without logging in again.

It also queries the server's operations API for rooms and health.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			client = NewClient(cfg.OpsURL, cfg.AdminToken)
			return nil
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.Server, "server", cfg.Server, "Chat server host:port (env: ROOMCHAT_SERVER)")
	rootCmd.PersistentFlags().StringVar(&cfg.OpsURL, "ops", cfg.OpsURL, "Operations API URL (env: ROOMCHAT_OPS)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output")

	// Add subcommands
	rootCmd.AddCommand(newConnectCmd())
	rootCmd.AddCommand(newRoomsCmd())
	rootCmd.AddCommand(newHealthCmd())
	rootCmd.AddCommand(newHashPasswordCmd())
	rootCmd.AddCommand(newGenCertCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
