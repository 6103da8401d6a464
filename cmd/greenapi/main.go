// Command greenapi runs payload injection suites against HTTP APIs described
// as curl commands, from the terminal, an HTTP API or an MCP client.
package main

import (
	"os"

	"github.com/waftester/greenapi/pkg/cli"
	"github.com/waftester/greenapi/pkg/duration"
)

func main() {
	ctx, cancel := cli.SignalContext(duration.SignalGrace, os.Stderr)
	code := cli.NewRunner(os.Stdout, os.Stderr).Run(ctx, os.Args[1:])
	cancel()
	os.Exit(code)
}
