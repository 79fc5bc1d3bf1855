// Package fixtures serves the static pages the view is pointed at during
// development and tests.
//
// Files are resolved below one root directory and filtered by doublestar
// patterns (for example "**/*.html"). Listing walks the tree with fastwalk.
// Content types are sniffed with mimetype; bodies can be gzip-compressed
// with klauspost/compress.
package fixtures
