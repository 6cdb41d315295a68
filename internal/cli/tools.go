package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/roomchat/internal/services/credentials"
	"github.com/mcoot/roomchat/internal/transport"
)

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for the server's users file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := credentials.HashPassword(args[0])
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.PrintMessage(hash)
			return nil
		},
	}
}

func newGenCertCmd() *cobra.Command {
	var (
		certFile string
		keyFile  string
		hosts    []string
		validFor time.Duration
	)

	cmd := &cobra.Command{
		Use:   "gen-cert",
		Short: "Write a self-signed certificate and key for a development server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			certPEM, keyPEM, err := transport.GenerateSelfSigned(hosts, validFor)
			if err != nil {
				return fmt.Errorf("failed to generate certificate: %w", err)
			}

			if err := writeFile(certFile, certPEM, 0644); err != nil {
				return err
			}
			if err := writeFile(keyFile, keyPEM, 0600); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.PrintMessage(fmt.Sprintf("Wrote %s and %s", certFile, keyFile))
			return nil
		},
	}

	cmd.Flags().StringVar(&certFile, "cert", "server.crt", "Certificate output path")
	cmd.Flags().StringVar(&keyFile, "key", "server.key", "Private key output path")
	cmd.Flags().StringSliceVar(&hosts, "host", []string{"localhost", "127.0.0.1"}, "Host names and IPs the certificate is valid for")
	cmd.Flags().DurationVar(&validFor, "valid-for", 365*24*time.Hour, "Certificate lifetime")

	return cmd
}

func writeFile(path string, data []byte, perm os.FileMode) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
