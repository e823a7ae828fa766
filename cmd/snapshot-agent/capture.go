package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/breeze-rmm/snapshot-agent/internal/desktop"
	"github.com/breeze-rmm/snapshot-agent/internal/queue"
)

var (
	captureView    string
	captureMonitor string
	capturePreview bool
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Take one screenshot and print its path",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCapture(cmd.Context())
	},
}

func init() {
	captureCmd.Flags().StringVar(&captureView, "view", string(queue.ViewQueue), "queue view (queue or solutions)")
	captureCmd.Flags().StringVar(&captureMonitor, "monitor", "", "monitor to capture for this run only (index, output name or none)")
	captureCmd.Flags().BoolVar(&capturePreview, "preview", false, "print the data URI preview as well")
}

// overrideSelector replaces the configured selector for one run.
type overrideSelector desktop.Selector

func (o overrideSelector) SelectedMonitor() desktop.Selector { return desktop.Selector(o) }

func runCapture(ctx context.Context) error {
	view, err := queue.ParseView(captureView)
	if err != nil {
		return err
	}

	a, err := newAgent(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var sel queue.SelectorSource
	if captureMonitor != "" {
		sel = overrideSelector(desktop.ParseSelector(captureMonitor))
	}
	manager, err := a.manager(sel, nil)
	if err != nil {
		return err
	}

	shot, err := manager.TakeScreenshot(ctx, view, a.hooks(ctx))
	if err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}
	fmt.Println(shot.Path)
	if capturePreview {
		fmt.Println(shot.Preview)
	}
	return nil
}
