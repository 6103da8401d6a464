// Package cli implements the greenapi command line: argument parsing,
// configuration bootstrap and the subcommands built on the engine.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/waftester/greenapi/pkg/config"
	"github.com/waftester/greenapi/pkg/core"
	"github.com/waftester/greenapi/pkg/curl"
	"github.com/waftester/greenapi/pkg/defaults"
	"github.com/waftester/greenapi/pkg/executor"
	"github.com/waftester/greenapi/pkg/payloads"
	"github.com/waftester/greenapi/pkg/ui"
)

// Command names a subcommand.
type Command string

const (
	CommandServe   Command = "serve"
	CommandRun     Command = "run"
	CommandSend    Command = "send"
	CommandSuites  Command = "suites"
	CommandMCP     Command = "mcp"
	CommandVersion Command = "version"
)

var summaries = map[Command]string{
	CommandServe:   "Start the HTTP API",
	CommandRun:     "Run a payload suite against a request template",
	CommandSend:    "Send a single request and print the response",
	CommandSuites:  "List the payload suites",
	CommandMCP:     "Start the MCP server (stdio or streamable HTTP)",
	CommandVersion: "Print the version",
}

// Handlers read summaries, so the two tables must stay separate to avoid an
// initialization cycle.
var handlers = map[Command]func(r *Runner, ctx context.Context, args []string) int{
	CommandServe:   (*Runner).runServe,
	CommandRun:     (*Runner).runSuite,
	CommandSend:    (*Runner).runSend,
	CommandSuites:  (*Runner).runSuites,
	CommandMCP:     (*Runner).runMCP,
	CommandVersion: (*Runner).runVersion,
}

// Commands returns every subcommand name, sorted.
func Commands() []Command {
	out := make([]Command, 0, len(summaries))
	for c := range summaries {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Runner executes subcommands. The zero value is not usable; call NewRunner.
type Runner struct {
	stdout io.Writer
	stderr io.Writer
	lookup config.LookupFunc
	dotenv []string
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLookup replaces os.LookupEnv as the environment source.
func WithLookup(fn config.LookupFunc) RunnerOption {
	return func(r *Runner) { r.lookup = fn }
}

// WithDotEnv sets the .env files tried before configuration is loaded.
// Passing none disables .env loading.
func WithDotEnv(paths ...string) RunnerOption {
	return func(r *Runner) { r.dotenv = paths }
}

// NewRunner creates a Runner writing results to stdout and diagnostics to
// stderr.
func NewRunner(stdout, stderr io.Writer, opts ...RunnerOption) *Runner {
	r := &Runner{
		stdout: stdout,
		stderr: stderr,
		lookup: os.LookupEnv,
		dotenv: []string{".env"},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run dispatches args (without the program name) and returns the exit code.
func (r *Runner) Run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		r.printUsage()
		return defaults.ExitUserError
	}
	switch args[0] {
	case "-h", "-help", "--help", "help":
		r.printUsage()
		return defaults.ExitSuccess
	case "-v", "-version", "--version":
		return r.runVersion(ctx, nil)
	}

	handler, ok := handlers[Command(args[0])]
	if !ok {
		ui.PrintError(r.stderr, fmt.Sprintf("unknown command %q", args[0]))
		r.printUsage()
		return defaults.ExitUserError
	}
	return handler(r, ctx, args[1:])
}

func (r *Runner) printUsage() {
	ui.PrintBanner(r.stderr)
	fmt.Fprintf(r.stderr, "Usage: %s <command> [flags]\n\n", defaults.ToolName)
	ui.PrintSection(r.stderr, "Commands")
	for _, c := range Commands() {
		fmt.Fprintf(r.stderr, "  %-9s %s\n", c, summaries[c])
	}
	fmt.Fprintf(r.stderr, "\nRun '%s <command> -h' for the flags of a command.\n", defaults.ToolName)
}

// newFlagSet returns a flag set that reports errors instead of exiting.
func (r *Runner) newFlagSet(cmd Command, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(string(cmd), flag.ContinueOnError)
	fs.SetOutput(r.stderr)
	fs.Usage = func() {
		fmt.Fprintf(r.stderr, "Usage: %s %s %s\n\n%s.\n\nFlags:\n", defaults.ToolName, cmd, usage, summaries[cmd])
		fs.PrintDefaults()
	}
	return fs
}

// parse parses args into fs and loads the configuration layers. done is
// true when the command should stop with code.
func (r *Runner) parse(fs *flag.FlagSet, args []string) (cfg *config.Config, code int, done bool) {
	ov := config.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, defaults.ExitSuccess, true
		}
		return nil, defaults.ExitUserError, true
	}

	if len(r.dotenv) > 0 {
		config.LoadDotEnv(r.dotenv...)
	}
	cfg, err := config.Load(ov.ConfigPath(), r.lookup, ov)
	if err != nil {
		ui.PrintError(r.stderr, err.Error())
		return nil, defaults.ExitUserError, true
	}
	return cfg, 0, false
}

// fail reports err and returns the matching exit code.
func (r *Runner) fail(err error) int {
	ui.PrintError(r.stderr, errorMessage(err))
	return ExitCode(err)
}

// ExitCode maps an error to a process exit code.
func ExitCode(err error) int {
	var reqErr *executor.RequestError
	switch {
	case err == nil:
		return defaults.ExitSuccess
	case errors.Is(err, core.ErrInput),
		errors.Is(err, curl.ErrParse),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, config.ErrMissingRequired),
		errors.Is(err, payloads.ErrInvalidCatalog),
		errors.Is(err, errUsage):
		return defaults.ExitUserError
	case errors.Is(err, core.ErrBaseline), errors.As(err, &reqErr):
		return defaults.ExitNetworkError
	default:
		return defaults.ExitInternalError
	}
}

// errorMessage renders err for a terminal. Request failures carry their
// cause code.
func errorMessage(err error) string {
	if reqErr, ok := executor.AsRequestError(err); ok {
		if errors.Is(err, core.ErrBaseline) {
			return "baseline request failed: " + reqErr.Details()
		}
		return "request failed: " + reqErr.Details()
	}
	return err.Error()
}
