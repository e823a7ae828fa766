package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/breeze-rmm/snapshot-agent/internal/api"
	"github.com/breeze-rmm/snapshot-agent/internal/config"
	"github.com/breeze-rmm/snapshot-agent/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the local capture API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newAgent(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	log := logging.L("main")

	hub := api.NewHub()
	manager, err := a.manager(nil, hub.Publish)
	if err != nil {
		return err
	}

	a.store.OnChange(func(c config.Config) {
		log.Info("screenshot settings changed", logging.KeySelector, c.Selector().String())
	})
	a.store.Watch()

	cfg := a.store.Config()
	fmt.Printf("Starting snapshot-agent v%s on %s\n", version, cfg.Server.ListenAddr)
	log.Info("platform detected",
		"os", a.platform.OS,
		"session", a.platform.SessionType,
		"geometryCapable", a.platform.GeometryCapable,
		"asyncWindowHide", a.platform.AsyncWindowHide)

	srv := api.NewServer(api.Deps{
		Manager:  manager,
		Monitors: a.strategy.Catalog(),
		Settings: a.store,
		Hooks:    a.hooks(ctx),
		Hub:      hub,
	})
	if err := srv.Run(ctx, cfg.Server.ListenAddr); err != nil {
		return err
	}
	fmt.Println("\nShutting down snapshot-agent...")
	return nil
}
