package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/user/classwatch/internal/config"
)

var (
	configSection string
	revealSecrets bool
)

func init() {
	configListCmd.Flags().StringVar(&configSection, "section", "", "only list keys under this section (e.g. capture, alert)")
	configGetCmd.Flags().BoolVar(&revealSecrets, "reveal", false, "print secret values instead of masking them")
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configListCmd, configGetCmd, configSetCmd, configPathCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configuration values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		values, err := config.ListValues(cfg, true)
		if err != nil {
			return fmt.Errorf("list config: %w", err)
		}

		prefix := ""
		if configSection != "" {
			prefix = configSection + "."
		}
		keys := make([]string, 0, len(values))
		for k := range values {
			if prefix != "" && !strings.HasPrefix(k, prefix) {
				continue
			}
			keys = append(keys, k)
		}
		if len(keys) == 0 {
			return fmt.Errorf("no config keys under section %q", configSection)
		}
		sort.Strings(keys)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tVALUE")
		for _, k := range keys {
			fmt.Fprintf(w, "%s\t%v\n", k, values[k])
		}
		return w.Flush()
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		val, err := config.GetValue(cfgPath, args[0])
		if err != nil {
			return err
		}
		if config.IsSecretKey(args[0]) && !revealSecrets {
			fmt.Fprintln(os.Stdout, "*** (use --reveal to print)")
			return nil
		}
		fmt.Fprintln(os.Stdout, val)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetValue(cfgPath, args[0], args[1]); err != nil {
			return err
		}
		display := args[1]
		if config.IsSecretKey(args[0]) {
			display = "***"
		}
		fmt.Fprintf(os.Stdout, "Set %s = %s\n", args[0], display)

		// Config is read once at daemon startup.
		if _, err := readPID(loadConfig()); err == nil {
			fmt.Fprintln(os.Stdout, "A daemon is running; run `classwatch restart` to apply.")
		}
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file and data directory paths",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "config\t%s\n", cfgPath)
		fmt.Fprintf(w, "data\t%s\n", cfg.DataDir)
		fmt.Fprintf(w, "overlay\thttp://%s\n", cfg.Overlay.Listen)
		return w.Flush()
	},
}
