// Package main is the single-binary entrypoint for Insight.
package main

import "github.com/insightai/insight/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
