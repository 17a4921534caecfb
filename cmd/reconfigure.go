package cmd

import (
	"fmt"

	"github.com/bnema/waytablet/internal/config"
	"github.com/bnema/waytablet/internal/ipc"
	"github.com/bnema/waytablet/internal/ui"
	"github.com/spf13/cobra"
)

var (
	reconfigureHost string
	reconfigurePort uint16
	reconfigureSave bool
)

// reconfigureCmd moves the running client's stream to a new destination
var reconfigureCmd = &cobra.Command{
	Use:   "reconfigure",
	Short: "Point the running client at a new destination",
	Long: `Point the running client at a new destination. Without --host the client
re-reads client.host and client.port from its configuration.

With --save the new destination is also written to the config file, so the
next client start uses it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if reconfigureSave {
			if reconfigureHost == "" {
				return fmt.Errorf("--save needs --host")
			}
			if err := config.SetDestination(reconfigureHost, reconfigurePort); err != nil {
				return err
			}
		}

		client, err := ipc.NewClient("")
		if err != nil {
			return fmt.Errorf("failed to create IPC client: %w", err)
		}

		resp, err := client.Reconfigure(reconfigureHost, reconfigurePort)
		if err != nil {
			return fmt.Errorf("failed to reconfigure: %w", err)
		}

		fmt.Println(ui.FormatResult(true, fmt.Sprintf("Sending to %s", resp.Destination)))
		return nil
	},
}

func init() {
	reconfigureCmd.Flags().StringVarP(&reconfigureHost, "host", "H", "", "New destination host (empty re-reads the config)")
	reconfigureCmd.Flags().Uint16VarP(&reconfigurePort, "port", "p", config.DefaultPort, "New destination port")
	reconfigureCmd.Flags().BoolVar(&reconfigureSave, "save", false, "Also store the destination in the config file")
}
