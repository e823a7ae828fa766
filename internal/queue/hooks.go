package queue

import (
	"context"
	"log/slog"
	"strings"

	"github.com/breeze-rmm/snapshot-agent/internal/desktop"
	"github.com/breeze-rmm/snapshot-agent/internal/logging"
)

// CommandHooks builds Hooks that run external commands, for example a
// window manager call that hides the overlay. Empty argv means no hook.
// Hook failures are logged and never abort a capture.
func CommandHooks(ctx context.Context, r desktop.Runner, suspend, resume []string) Hooks {
	log := logging.L("hooks")
	return Hooks{
		Suspend: commandHook(ctx, r, log, "suspend", suspend),
		Resume:  commandHook(ctx, r, log, "resume", resume),
	}
}

func commandHook(ctx context.Context, r desktop.Runner, log *slog.Logger, name string, argv []string) func() {
	if len(argv) == 0 || r == nil {
		return nil
	}
	return func() {
		if _, err := r.Run(context.WithoutCancel(ctx), argv[0], argv[1:]...); err != nil {
			log.Warn("ui hook failed", "hook", name, "command", strings.Join(argv, " "), logging.Err(err))
		}
	}
}
