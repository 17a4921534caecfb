package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/waytablet/internal/ipc"
	"github.com/bnema/waytablet/internal/ui"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the running client",
	Long:  `Ask the running waytablet client for its connection state, destination and frame counters.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := ipc.NewClient("")
		if err != nil {
			return fmt.Errorf("failed to create IPC client: %w", err)
		}

		resp, err := client.Status()
		if errors.Is(err, ipc.ErrNotRunning) {
			fmt.Println("waytablet client is not running")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get client status: %w", err)
		}

		fmt.Print(renderStatus(resp))
		return nil
	},
}

// renderStatus formats a status response for the terminal.
func renderStatus(resp ipc.Response) string {
	var out strings.Builder

	out.WriteString(ui.HeaderStyle.Render("waytablet client"))
	out.WriteString("\n")
	out.WriteString(ui.CreateSeparator(40, ""))
	out.WriteString("\n")

	dest := resp.Destination
	if dest == "" {
		dest = "none"
	}
	out.WriteString(ui.FormatField("State", ui.FormatState(resp.State)) + "\n")
	out.WriteString(ui.FormatField("Destination", dest) + "\n")
	out.WriteString(ui.FormatField("Sent", ui.FormatCount(resp.Sent)) + "\n")
	out.WriteString(ui.FormatField("Dropped", ui.FormatCount(resp.Dropped)) + "\n")
	if resp.SendErrors > 0 {
		out.WriteString(ui.FormatField("Send errors", ui.WarningStyle.Render(ui.FormatCount(resp.SendErrors))) + "\n")
	}
	return out.String()
}
