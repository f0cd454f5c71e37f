package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reusee/dscope"
	"github.com/reusee/infsite/cmds"
	"github.com/reusee/infsite/generators"
	"github.com/reusee/infsite/logs"
	"github.com/reusee/infsite/modes"
	"github.com/reusee/infsite/servers"
	"github.com/reusee/infsite/sites"
	"github.com/reusee/infsite/storages"
	"github.com/reusee/infsite/telemetry"
)

func main() {
	cmds.Execute(os.Args[1:])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scope := dscope.New(
		new(Module),
		modes.ForProduction(),
	)

	var err error
	scope.Call(func(
		logger logs.Logger,
		apiKey generators.GoogleAPIKey,
		config sites.Config,
		getStore storages.GetStore,
		getGenerator generators.GetDefaultGenerator,
		setupTelemetry telemetry.Setup,
		run servers.Run,
	) {
		err = serve(ctx, logger, apiKey, config, getStore, getGenerator, setupTelemetry, run)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func serve(
	ctx context.Context,
	logger logs.Logger,
	apiKey generators.GoogleAPIKey,
	config sites.Config,
	getStore storages.GetStore,
	getGenerator generators.GetDefaultGenerator,
	setupTelemetry telemetry.Setup,
	run servers.Run,
) error {

	// fail fast on anything a request would otherwise trip over
	if apiKey == "" {
		return errors.New("no API key: set google_api_key in config, or GEMINI_KEY or GOOGLE_API_KEY in the environment")
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if _, err := getStore(); err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	generator, err := getGenerator()
	if err != nil {
		return fmt.Errorf("default generator: %w", err)
	}
	logger.Info("generator",
		"model", generator.Args().Model,
		"body_policy", config.BodyPolicy,
	)

	shutdown, err := setupTelemetry(ctx)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	return run(ctx)
}
