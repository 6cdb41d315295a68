package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

func newRoomsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "List and inspect rooms",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result RoomList

			if err := client.Get("/api/v1/rooms", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}

	cmd.AddCommand(newRoomsGetCmd())
	cmd.AddCommand(newRoomsCreateCmd())

	return cmd
}

func newRoomsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Get room details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Room

			if err := client.Get(fmt.Sprintf("/api/v1/rooms/%s", url.PathEscape(args[0])), &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}
}

func newRoomsCreateCmd() *cobra.Command {
	var prompt string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a room (requires an admin token)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"name": args[0]}
			if prompt != "" {
				req["prompt"] = prompt
			}

			var result Room

			if err := client.Post("/api/v1/rooms", req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&prompt, "prompt", "", "Create an AI room with this base prompt")
	cmd.Flags().StringVar(&cfg.AdminToken, "admin-token", cfg.AdminToken, "Ops admin token (env: ROOMCHAT_ADMIN_TOKEN)")

	return cmd
}
