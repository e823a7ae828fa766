package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/breeze-rmm/snapshot-agent/internal/desktop"
)

type backendReport struct {
	Kind      desktop.Kind `json:"kind" yaml:"kind"`
	Available bool         `json:"available" yaml:"available"`
	Displays  int          `json:"displays" yaml:"displays"`
	Error     string       `json:"error,omitempty" yaml:"error,omitempty"`
}

type doctorReport struct {
	Version         string           `json:"version" yaml:"version"`
	Config          string           `json:"config" yaml:"config"`
	DataDir         string           `json:"dataDir" yaml:"dataDir"`
	SelectedMonitor any              `json:"selectedMonitor" yaml:"selectedMonitor"`
	Platform        desktop.Platform `json:"platform" yaml:"platform"`
	Tools           map[string]bool  `json:"tools" yaml:"tools"`
	Backends        []backendReport  `json:"backends" yaml:"backends"`
}

var doctorOutput string

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Report which capture backends work on this host",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newAgent(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		cfg := a.store.Config()
		report := doctorReport{
			Version:         version,
			Config:          a.store.Path(),
			DataDir:         cfg.DataDir,
			SelectedMonitor: cfg.Selector().Value(),
			Platform:        a.platform,
			Tools: map[string]bool{
				"xrandr": desktop.HaveTool("xrandr"),
				"import": desktop.HaveTool("import"),
			},
		}

		report.Backends = probeBackends(cmd.Context(), a.strategy.Catalog())
		return writeOutput(os.Stdout, doctorOutput, report)
	},
}

// probeBackends enumerates displays through every backend kind.
func probeBackends(ctx context.Context, catalog *desktop.Catalog) []backendReport {
	var reports []backendReport
	for _, kind := range []desktop.Kind{desktop.KindGeneric, desktop.KindGeometry, desktop.KindComposited} {
		r := backendReport{Kind: kind}
		displays, err := catalog.ListDisplays(ctx, kind)
		if err != nil {
			r.Error = err.Error()
		} else {
			r.Available = true
			r.Displays = len(displays)
		}
		reports = append(reports, r)
	}
	return reports
}

func init() {
	doctorCmd.Flags().StringVarP(&doctorOutput, "output", "o", "yaml", "output format (yaml or json)")
}
