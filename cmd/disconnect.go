package cmd

import (
	"fmt"

	"github.com/bnema/waytablet/internal/ipc"
	"github.com/bnema/waytablet/internal/ui"
	"github.com/spf13/cobra"
)

// disconnectCmd releases the running client's socket
var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Release the running client's socket",
	Long: `Release the running client's socket. Events are dropped until the next
reconfigure, which can come from "waytablet reconfigure" or a config edit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := ipc.NewClient("")
		if err != nil {
			return fmt.Errorf("failed to create IPC client: %w", err)
		}

		if _, err := client.Disconnect(); err != nil {
			return fmt.Errorf("failed to disconnect: %w", err)
		}

		fmt.Println(ui.FormatResult(true, "Disconnected"))
		return nil
	},
}
