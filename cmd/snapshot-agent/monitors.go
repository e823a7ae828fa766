package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/breeze-rmm/snapshot-agent/internal/desktop"
)

var monitorsOutput string

var monitorsCmd = &cobra.Command{
	Use:   "monitors",
	Short: "List monitors with the identifiers select-monitor accepts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newAgent(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()
		monitors := a.strategy.Catalog().ListMonitors(cmd.Context())
		return writeOutput(os.Stdout, monitorsOutput, monitors)
	},
}

var selectMonitorCmd = &cobra.Command{
	Use:   "select-monitor <id|name|none>",
	Short: "Persist the monitor used for captures",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closer, err := openStore()
		if err != nil {
			return err
		}
		defer closer.Close()

		sel := desktop.ParseSelector(args[0])
		if err := store.SetSelectedMonitor(sel); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Printf("Selected monitor: %s (saved to %s)\n", sel, store.Path())
		return nil
	},
}

func init() {
	monitorsCmd.Flags().StringVarP(&monitorsOutput, "output", "o", "yaml", "output format (yaml or json)")
}

func writeOutput(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (use yaml or json)", format)
	}
}
