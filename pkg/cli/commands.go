package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/waftester/greenapi/pkg/core"
	"github.com/waftester/greenapi/pkg/curl"
	"github.com/waftester/greenapi/pkg/defaults"
	"github.com/waftester/greenapi/pkg/duration"
	"github.com/waftester/greenapi/pkg/finding"
	"github.com/waftester/greenapi/pkg/jsonutil"
	"github.com/waftester/greenapi/pkg/mcpserver"
	"github.com/waftester/greenapi/pkg/report"
	"github.com/waftester/greenapi/pkg/server"
	"github.com/waftester/greenapi/pkg/ui"
)

const defaultTableWidth = 120

func (r *Runner) runServe(ctx context.Context, args []string) int {
	fs := r.newFlagSet(CommandServe, "[flags]")
	cfg, code, done := r.parse(fs, args)
	if done {
		return code
	}
	rt, err := r.setup(ctx, cfg)
	if err != nil {
		return r.fail(err)
	}
	defer rt.close()

	srv := server.New(rt.engine, cfg.ServerConfig(),
		server.WithLogger(rt.logger),
		server.WithMetrics(rt.metrics),
	)
	if err := srv.ListenAndServe(ctx); err != nil {
		return r.fail(err)
	}
	return defaults.ExitSuccess
}

// suiteOutput is the -json document of the run command.
type suiteOutput struct {
	Suite   string            `json:"suite"`
	Summary core.Summary      `json:"summary"`
	Results []core.TestResult `json:"results"`
}

func (r *Runner) runSuite(ctx context.Context, args []string) int {
	fs := r.newFlagSet(CommandRun, "-suite <name> '<curl command with $PAYLOAD$>'")
	suite := fs.String("suite", "", "Payload suite to run (see 'suites')")
	template := fs.String("template", "", "curl command containing $PAYLOAD$ (or pass it as arguments)")
	useAI := fs.Bool("ai", false, "Classify responses with the configured AI service")
	asJSON := fs.Bool("json", false, "Write results as JSON to stdout")
	reportPath := fs.String("report", "", "Also write a report; format follows the extension (.html or .pdf)")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	quiet := fs.Bool("quiet", false, "Hide progress output")
	cfg, code, done := r.parse(fs, args)
	if done {
		return code
	}
	r.applyColor(*noColor)

	tmpl := commandArg(*template, fs.Args())
	if tmpl == "" {
		return r.fail(usageError("a curl command template is required"))
	}
	if *reportPath != "" {
		if _, err := reportWriter(*reportPath); err != nil {
			return r.fail(err)
		}
	}

	rt, err := r.setup(ctx, cfg)
	if err != nil {
		return r.fail(err)
	}
	defer rt.close()

	if *useAI && !rt.engine.AIEnabled() {
		ui.PrintWarning(r.stderr, "no AI service is configured; using heuristic analysis")
	}
	if !*asJSON && !*quiet {
		r.printRunManifest(rt, *suite, tmpl, *useAI)
	}

	req := core.RunRequest{Template: tmpl, Suite: *suite, UseAI: *useAI}
	if !*quiet {
		req.Observer = ui.NewProgress(r.stderr)
	}
	results, err := rt.engine.RunSuite(ctx, req)
	if err != nil {
		if errors.Is(err, core.ErrUnknownSuite) {
			err = fmt.Errorf("%w (valid suites: %s)", err, strings.Join(rt.engine.Catalog().Names(), ", "))
		}
		return r.fail(err)
	}

	summary := core.Summarize(results)
	if *asJSON {
		if err := writeJSON(r.stdout, suiteOutput{Suite: *suite, Summary: summary, Results: results}); err != nil {
			return r.fail(err)
		}
	} else {
		fmt.Fprintln(r.stdout)
		ui.PrintResults(r.stdout, results, ui.TerminalWidth(r.stdout, defaultTableWidth))
		fmt.Fprintln(r.stdout)
		ui.PrintFindings(r.stdout, results)
		ui.PrintSummary(r.stdout, summary, analysisMode(results))
	}

	if *reportPath != "" {
		if err := writeReport(*reportPath, results, *suite); err != nil {
			return r.fail(err)
		}
		rt.logger.Info("report written", slog.String("path", *reportPath))
		if !*quiet {
			ui.PrintSuccess(r.stderr, "report written to "+*reportPath)
		}
	}

	if summary.Detected > 0 {
		return defaults.ExitFindings
	}
	return defaults.ExitSuccess
}

func (r *Runner) printRunManifest(rt *runtime, suite, tmpl string, useAI bool) {
	count := ""
	if list, ok := rt.engine.Catalog().ListFor(suite); ok {
		count = strconv.Itoa(len(list))
	}
	mode := finding.ModeHeuristic
	if useAI && rt.engine.AIEnabled() {
		mode = "AI"
	}
	ui.PrintBanner(r.stderr)
	(&ui.Manifest{}).
		Add("Suite", suite).
		Add("Payloads", count).
		Add("Analysis", mode).
		Add("Template", ui.Truncate(ui.Printable(curl.TrimCommand(tmpl)), 80)).
		Add("Rate limit", rateLabel(rt.cfg.Engine.RateLimit)).
		Print(r.stderr)
}

func (r *Runner) runSend(ctx context.Context, args []string) int {
	fs := r.newFlagSet(CommandSend, "'<curl command>'")
	command := fs.String("command", "", "curl command to send (or pass it as arguments)")
	asJSON := fs.Bool("json", false, "Write the exchange as JSON to stdout")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	cfg, code, done := r.parse(fs, args)
	if done {
		return code
	}
	r.applyColor(*noColor)

	cmd := commandArg(*command, fs.Args())
	if cmd == "" {
		return r.fail(usageError("a curl command is required"))
	}
	req, _, err := curl.ParseCommand(cmd, false)
	if err != nil {
		return r.fail(err)
	}

	rt, err := r.setup(ctx, cfg)
	if err != nil {
		return r.fail(err)
	}
	defer rt.close()

	ex, err := rt.engine.ExecuteOne(ctx, req)
	if err != nil {
		return r.fail(err)
	}
	if *asJSON {
		if err := writeJSON(r.stdout, ex); err != nil {
			return r.fail(err)
		}
		return defaults.ExitSuccess
	}
	ui.PrintExchange(r.stdout, ex)
	return defaults.ExitSuccess
}

func (r *Runner) runSuites(ctx context.Context, args []string) int {
	fs := r.newFlagSet(CommandSuites, "[flags]")
	asJSON := fs.Bool("json", false, "Write the suites as JSON to stdout")
	verbose := fs.Bool("payloads", false, "Also print every payload")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	cfg, code, done := r.parse(fs, args)
	if done {
		return code
	}
	r.applyColor(*noColor)
	rt, err := r.setup(ctx, cfg)
	if err != nil {
		return r.fail(err)
	}
	defer rt.close()

	catalog := rt.engine.Catalog()
	if *asJSON {
		if err := writeJSON(r.stdout, catalog.Suites()); err != nil {
			return r.fail(err)
		}
		return defaults.ExitSuccess
	}

	for _, s := range catalog.Suites() {
		fmt.Fprintf(r.stdout, "%-22s %-28s %s\n",
			ui.ValueStyle.Render(s.Name), s.Label, ui.LabelStyle.Render(strconv.Itoa(s.Count)+" payloads"))
		if *verbose {
			list, _ := catalog.ListFor(s.Name)
			for _, p := range list {
				fmt.Fprintf(r.stdout, "    %s\n", ui.Printable(p))
			}
		}
	}
	return defaults.ExitSuccess
}

func (r *Runner) runMCP(ctx context.Context, args []string) int {
	fs := r.newFlagSet(CommandMCP, "[-http addr]")
	httpAddr := fs.String("http", "", "Serve streamable HTTP on this address instead of stdio")
	cfg, code, done := r.parse(fs, args)
	if done {
		return code
	}
	rt, err := r.setup(ctx, cfg)
	if err != nil {
		return r.fail(err)
	}
	defer rt.close()

	srv := mcpserver.New(rt.engine, mcpserver.WithLogger(rt.logger))
	if *httpAddr == "" {
		if err := srv.RunStdio(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return r.fail(err)
		}
		return defaults.ExitSuccess
	}

	ln, err := net.Listen("tcp", *httpAddr)
	if err != nil {
		return r.fail(err)
	}
	if err := serveHTTP(ctx, ln, srv.HTTPHandler(), rt.logger); err != nil {
		return r.fail(err)
	}
	return defaults.ExitSuccess
}

// serveHTTP serves h on ln until ctx is cancelled, then drains in-flight
// requests.
func serveHTTP(ctx context.Context, ln net.Listener, h http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: duration.ReadHeader,
		IdleTimeout:       duration.IdleConn,
		MaxHeaderBytes:    1 << 20,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("mcp http transport listening", slog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), duration.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (r *Runner) runVersion(_ context.Context, _ []string) int {
	fmt.Fprintf(r.stdout, "%s %s\n", defaults.ToolName, defaults.Version)
	return defaults.ExitSuccess
}

func (r *Runner) applyColor(disable bool) {
	if disable || ui.ColorDisabledByEnv() || !ui.IsTerminal(r.stdout) {
		ui.SetNoColor(true)
	}
}

// commandArg returns flagValue, or the positional arguments joined with
// spaces when the flag is empty.
func commandArg(flagValue string, rest []string) string {
	if flagValue != "" {
		return flagValue
	}
	return strings.TrimSpace(strings.Join(rest, " "))
}

// analysisMode returns the mode label shared by the run, ignoring
// execution errors.
func analysisMode(results []core.TestResult) string {
	for i := range results {
		if !results[i].Failed() {
			return results[i].AnalysisMode
		}
	}
	return finding.ModeHeuristic
}

func rateLabel(perSecond float64) string {
	if perSecond <= 0 {
		return "unlimited"
	}
	return strconv.FormatFloat(perSecond, 'f', -1, 64) + " req/s"
}

func writeJSON(w io.Writer, v any) error {
	enc := jsonutil.NewEncoder(w)
	enc.SetIndent("  ")
	return enc.Encode(v)
}

func reportWriter(path string) (func(io.Writer, *report.Report) error, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return report.WriteHTML, nil
	case ".pdf":
		return report.WritePDF, nil
	default:
		return nil, usageError("report %q must end in .html or .pdf", path)
	}
}

func writeReport(path string, results []core.TestResult, suite string) error {
	write, err := reportWriter(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	rep := report.New(results, report.WithTitle("GreenAPI Security Report: "+suite))
	if err := write(f, rep); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
