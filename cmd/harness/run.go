package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mfduar8766/browserautomation/internal/api/ws"
	"github.com/mfduar8766/browserautomation/internal/domain/argscodec"
	"github.com/mfduar8766/browserautomation/internal/domain/bridge"
	"github.com/mfduar8766/browserautomation/internal/harness"
	"github.com/mfduar8766/browserautomation/internal/infrastructure/config"
	"github.com/mfduar8766/browserautomation/internal/infrastructure/monitoring"
	"github.com/mfduar8766/browserautomation/internal/infrastructure/server"
	"github.com/mfduar8766/browserautomation/internal/providers/browser/view"
	"github.com/mfduar8766/browserautomation/internal/providers/probe"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [--key=value ...]",
		Short: "Open the view and run the renderer",
		Long: `Run opens the view and boots the renderer. Every argument after "run" is
passed to the renderer as a launch argument: "--url=https://example.com"
becomes api.args.url. Host configuration comes from HARNESS_* environment
variables and the file named by HARNESS_CONFIG_FILE.`,
		// Launch arguments are free-form; cobra must not interpret them.
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHarness(args)
		},
	}
}

func runHarness(rawArgs []string) error {
	cfg, logger, err := setup("")
	if err != nil {
		return err
	}
	defer logger.Sync()

	preload, err := harness.ReadPreload(cfg.Renderer.PreloadPath)
	if err != nil {
		logger.Error("Cannot start without a preload script",
			zap.String("path", cfg.Renderer.PreloadPath),
			zap.Error(err),
		)
		return err
	}

	script, err := readOptional(cfg.Renderer.ScriptPath)
	if err != nil {
		return fmt.Errorf("read renderer script: %w", err)
	}
	markup, err := readOptional(cfg.Renderer.MarkupPath)
	if err != nil {
		return fmt.Errorf("read renderer markup: %w", err)
	}

	launchArgs := argscodec.Parse(rawArgs)
	serialized, err := argscodec.Serialize(launchArgs)
	if err != nil {
		return err
	}

	logger.Info("Starting harness",
		zap.Strings("args", launchArgs.Keys()),
		zap.String("view", cfg.Browser.Kind),
	)

	ctx, stop := signalContext()
	defer stop()

	transport := bridge.NewTransport()
	v, err := openView(ctx, cfg, transport, preload, serialized, logger.Logger)
	if err != nil {
		return err
	}
	defer v.Close()

	metrics := monitoring.NewMetrics()
	opts := harness.Options{
		Args:          launchArgs,
		View:          v,
		Transport:     transport,
		Script:        script,
		Markup:        markup,
		ScriptTimeout: cfg.Renderer.ScriptTimeout.Std(),
		Logger:        logger.Logger,
		Metrics:       metrics,
	}
	if cfg.Renderer.WaitForURL {
		probeOpts := probe.DefaultOptions()
		probeOpts.Retries = cfg.Renderer.WaitRetries
		probeOpts.Logger = logger.Logger
		opts.Probe = probe.New(probeOpts)
	}

	var srv *server.Server
	if cfg.Server.Enabled {
		hub := ws.NewHub(ws.WithLogger(logger.Logger), ws.WithMetrics(metrics))
		opts.Hub = hub
		srv, err = server.New(server.Options{
			Addr:        cfg.Server.Addr,
			RateLimit:   cfg.RateLimit,
			Development: cfg.Log.Development,
			Logger:      logger.Logger,
			LogLevel:    logger.LevelHandler(),
			Metrics:     metrics,
			Hub:         hub,
		})
		if err != nil {
			return err
		}
	}

	h, err := harness.New(opts)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	g.Go(func() error {
		// The server lives as long as the run.
		defer cancel()
		return h.Run(runCtx)
	})
	if srv != nil {
		g.Go(func() error { return srv.Run(runCtx) })
	}

	if err := g.Wait(); err != nil {
		logger.Error("Harness stopped with error", zap.Error(err))
		return err
	}
	logger.Info("Harness stopped")
	return nil
}

type closableView interface {
	harness.View
	Close() error
}

func openView(ctx context.Context, cfg *config.Config, transport *bridge.Transport, preload, serializedArgs string, logger *zap.Logger) (closableView, error) {
	if cfg.Browser.Kind == config.ViewMemory {
		return view.NewMemory(), nil
	}

	rv, err := view.OpenRod(ctx, view.RodOptions{
		ControlURL:     cfg.Browser.ControlURL,
		Bin:            cfg.Browser.Bin,
		Headless:       cfg.Browser.Headless,
		Width:          cfg.Browser.Width,
		Height:         cfg.Browser.Height,
		NavTimeout:     cfg.Browser.NavTimeout.Std(),
		Preload:        preload,
		SerializedArgs: serializedArgs,
		OnMessage: func(payload []byte) {
			// Send fails only after shutdown closed the transport.
			_ = transport.Send(payload)
		},
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open browser view: %w", err)
	}
	return rv, nil
}
