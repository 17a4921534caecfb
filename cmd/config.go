package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/bnema/waytablet/internal/config"
	"github.com/bnema/waytablet/internal/logger"
	"github.com/bnema/waytablet/internal/source"
	"github.com/bnema/waytablet/internal/ui"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage waytablet configuration",
	Long:  `Show, edit and initialize the waytablet configuration file.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(ui.FormatField("Config file", config.GetConfigPath()))
		fmt.Println()
		return writeSettings(os.Stdout)
	},
}

// writeSettings prints every settable key with its effective value.
func writeSettings(out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, key := range config.Keys() {
		if _, err := fmt.Fprintf(w, "%s\t%v\n", key, viper.Get(key)); err != nil {
			return err
		}
	}
	return w.Flush()
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value and save it",
	Long: `Set a configuration value and save it. A running client picks up changes to
client.host and client.port without a restart.`,
	Args: cobra.ExactArgs(2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return config.Keys(), cobra.ShellCompDirectiveNoFileComp
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetValue(args[0], args[1]); err != nil {
			return err
		}
		fmt.Println(ui.FormatResult(true, fmt.Sprintf("%s = %s", args[0], args[1])))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.GetConfigPath())
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file with defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.GetConfigPath()
		if _, err := os.Stat(configPath); err == nil {
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				logger.Infof("Configuration file already exists at: %s", configPath)
				logger.Info("Use --force to overwrite")
				return nil
			}
		}

		if err := config.Save(); err != nil {
			return err
		}

		logger.Infof("Configuration initialized at: %s", configPath)
		return nil
	},
}

var configSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactively choose destination, source and receiver options",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()

		clientCfg := cfg.Client
		portStr := strconv.Itoa(int(clientCfg.Port))
		inject := cfg.Receiver.Inject

		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Destination host").
					Description("Name or address of the machine running `waytablet receive`").
					Value(&clientCfg.Host),
				huh.NewInput().
					Title("Destination port").
					Value(&portStr).
					Validate(validatePort),
			),
			huh.NewGroup(
				huh.NewSelect[string]().
					Title("Event source").
					Options(
						huh.NewOption("Demo stroke", source.NameDemo),
						huh.NewOption("Script file", source.NameScript),
						huh.NewOption("Standard input", source.NameStdin),
					).
					Value(&clientCfg.Source),
				huh.NewInput().
					Title("Script path").
					Description("Only used by the script source").
					Value(&clientCfg.ScriptPath),
			),
			huh.NewGroup(
				huh.NewConfirm().
					Title("Inject on the receiver?").
					Description("Replay received frames on a uinput virtual pointer").
					Value(&inject),
			),
		)

		if err := form.Run(); err != nil {
			return fmt.Errorf("setup cancelled: %w", err)
		}

		port, _ := strconv.ParseUint(portStr, 10, 16)
		clientCfg.Port = uint16(port)

		if err := config.UpdateClient(clientCfg); err != nil {
			return err
		}
		if err := config.SetValue("receiver.inject", strconv.FormatBool(inject)); err != nil {
			return err
		}

		fmt.Println(ui.FormatResult(true, "Configuration saved to "+config.GetConfigPath()))
		return nil
	},
}

// validatePort accepts a decimal port in 1-65535.
func validatePort(s string) error {
	p, err := strconv.ParseUint(s, 10, 16)
	if err != nil || p == 0 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetupCmd)

	configInitCmd.Flags().Bool("force", false, "Force overwrite existing configuration")
}
