// Package main is the single-binary entrypoint for dayplanner.
package main

import "github.com/dayplanner-app/dayplanner/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
