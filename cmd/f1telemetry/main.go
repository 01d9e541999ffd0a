package main

import (
	"os"

	"f1telemetry/internal/cli"
)

var version = "dev"

func main() {
	os.Exit(cli.Execute(version))
}
