package cmd

import (
	"fmt"

	"github.com/bnema/waytablet/internal/config"
	"github.com/bnema/waytablet/internal/logger"
	"github.com/spf13/cobra"
)

var (
	configFile string

	rootCmd = &cobra.Command{
		Use:   "waytablet",
		Short: "waytablet - stream pen input to a desktop over UDP",
		Long: `waytablet turns a device into a network graphics tablet. The client streams
pen motion and button events as small UDP datagrams to a receiver on the
desktop, which can replay them on a virtual pointer through uinput.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

// Execute runs the root command
func Execute() error {
	rootCmd.Version = Version
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s\n" .Version}}`)
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default is the user config dir)")

	rootCmd.AddCommand(clientCmd)
	rootCmd.AddCommand(receiveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(reconfigureCmd)
	rootCmd.AddCommand(disconnectCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		config.SetConfigPath(configFile)
	}
	if err := config.Init(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Config overrides LOG_LEVEL only when set
	if level := config.Get().Logging.LogLevel; level != "" {
		if _, ok := logger.ParseLevel(level); !ok {
			logger.Warn("Ignoring unknown log level", "level", level)
		}
		logger.SetLevel(level)
	}
	return nil
}
