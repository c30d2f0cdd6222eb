package main

import (
	"github.com/archkit/archkit/internal/cli"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.Execute()
}
