// Package main provides the Costray orchestrator, which runs cost analysis
// executions over the unit catalog.
package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:                  "costray-orchestrator",
		EnableShellCompletion: true,
		Usage:                 "Run resumable cost analysis executions over the unit catalog",
		Commands: []*cli.Command{
			RunCommand(),
			ProbeCommand(),
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
