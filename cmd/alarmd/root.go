package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// defaultConfigPath is used when neither --config nor GRAYLOGIC_CONFIG is set.
const defaultConfigPath = "configs/config.yaml"

// newRootCmd builds the alarmd command tree.
func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "alarmd <broker-address>",
		Short: "MQTT alarm controller",
		Long: `alarmd connects to an MQTT broker and runs the alarm state machine.

The broker address is a host name or IP, optionally with a port
(default 1883). Settings come from the config file, then GRAYLOGIC_*
environment variables. A missing default config file is not an error.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true, // main prints the error
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := options{
				brokerAddr: args[0],
				configPath: configPath,
				stdout:     cmd.OutOrStdout(),
			}
			opts.configRequired = cmd.Flags().Changed("config") || os.Getenv("GRAYLOGIC_CONFIG") != ""
			return run(cmd.Context(), opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", configPathFromEnv(),
		"path to the YAML config file (env GRAYLOGIC_CONFIG)")

	cmd.AddCommand(newVersionCmd(), newMigrateCmd(&configPath))
	return cmd
}

// configPathFromEnv returns GRAYLOGIC_CONFIG if set, otherwise the default.
func configPathFromEnv() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// newVersionCmd prints build information.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show alarmd version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, c := version, commit
			if info, ok := debug.ReadBuildInfo(); ok {
				if v == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
					v = info.Main.Version
				}
				for _, setting := range info.Settings {
					if setting.Key == "vcs.revision" && c == "unknown" {
						c = setting.Value
					}
				}
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "alarmd %s (commit %s, built %s)\n", v, c, date)
			return err
		},
	}
}
