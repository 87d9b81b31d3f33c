package main

import (
	"context"
	"log/slog"
	"rarebird/cmd/rarebird/commands"
	"rarebird/lib/serviceutil"
	"rarebird/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()

	tel, err := telemetry.SetupFromEnv(ctx, "rarebird")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	serviceutil.OnExit(func() {
		err := tel.Shutdown(context.Background())
		if err != nil {
			slog.Warn("failed to shutdown telemetry", "err", err)
		}
	})
	defer serviceutil.RunExitHooks()

	commands.ExecuteContext(ctx)
}
