// Package logging builds the process zap logger.
//
// Production writes JSON, development writes colored console lines. Every
// logger carries a run_id field so lines from one harness invocation can be
// grouped. LevelHandler exposes the level for changes at runtime.
//
//	logger, err := logging.New(logging.FromConfig(cfg.Log))
//	logger.Info("Harness starting", zap.String("view", cfg.Browser.Kind))
package logging
