// Package main provides the pagesync CLI, which publishes the Markdown
// documents listed in a manifest as WordPress pages and republishes them
// only when their content changes.
//
// Usage:
//
//	pagesync sync --config pagesync.yaml
//	pagesync preview docs/about.md
//	pagesync config check --config pagesync.yaml
package main

func main() {
	Execute()
}
