package harness

import (
	_ "embed"
)

//go:embed assets/renderer.js
var rendererScript string

//go:embed assets/index.html
var rendererMarkup string

// DefaultScript returns the embedded renderer script.
func DefaultScript() string {
	return rendererScript
}

// DefaultMarkup returns the embedded renderer page.
func DefaultMarkup() string {
	return rendererMarkup
}
