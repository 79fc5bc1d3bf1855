// Package config loads host configuration for the harness.
//
// Sources, later ones winning:
//   - Default()
//   - an optional YAML (.yaml, .yml) or TOML (.toml) file
//   - HARNESS_* environment variables
//
// Environment Variables:
//   - HARNESS_LOG_LEVEL, HARNESS_LOG_DEV
//   - HARNESS_BROWSER_KIND (rod|memory), HARNESS_BROWSER_HEADLESS,
//     HARNESS_BROWSER_BIN, HARNESS_BROWSER_CONTROL_URL,
//     HARNESS_BROWSER_WIDTH, HARNESS_BROWSER_HEIGHT, HARNESS_BROWSER_NAV_TIMEOUT
//   - HARNESS_RENDERER_PRELOAD_PATH, HARNESS_RENDERER_SCRIPT_PATH,
//     HARNESS_RENDERER_MARKUP_PATH, HARNESS_RENDERER_SCRIPT_TIMEOUT,
//     HARNESS_RENDERER_WAIT_FOR_URL, HARNESS_RENDERER_WAIT_RETRIES
//   - HARNESS_SERVER_ENABLED, HARNESS_SERVER_ADDR, HARNESS_SERVER_FIXTURES_DIR,
//     HARNESS_SERVER_FIXTURES_ADDR, HARNESS_SERVER_FIXTURES_GLOB
//   - HARNESS_RATE_LIMIT_RPS, HARNESS_RATE_LIMIT_BURST, HARNESS_RATE_LIMIT_ENABLED
//   - HARNESS_CONFIG_FILE
//
// This is host configuration only. What the renderer sees is the ConfigMap
// parsed from the command line.
package config
