package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mfduar8766/browserautomation/internal/infrastructure/fixtures"
	"github.com/mfduar8766/browserautomation/internal/infrastructure/monitoring"
	"github.com/mfduar8766/browserautomation/internal/infrastructure/server"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		dir        string
		addr       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve local fixture pages for the harness to load",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(configPath)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if dir == "" {
				dir = cfg.Server.FixturesDir
			}
			if addr == "" {
				addr = cfg.Server.FixturesAddr
			}

			store, err := fixtures.NewStore(dir, cfg.Server.FixturesGlob)
			if err != nil {
				return err
			}

			srv, err := server.New(server.Options{
				Addr:        addr,
				RateLimit:   cfg.RateLimit,
				Development: cfg.Log.Development,
				Logger:      logger.Logger,
				LogLevel:    logger.LevelHandler(),
				Metrics:     monitoring.NewMetrics(),
				Fixtures:    store,
			})
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			logger.Info("Serving fixtures", zap.String("dir", store.Root()), zap.String("addr", addr))
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file (YAML or TOML)")
	cmd.Flags().StringVar(&dir, "dir", "", "Fixtures directory (default from config)")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}
