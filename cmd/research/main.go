package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"deepresearch/internal/config"
	"deepresearch/internal/events"
	"deepresearch/internal/models"
	"deepresearch/internal/orchestrator"
	"deepresearch/internal/session"
)

var (
	cyan   = color.New(color.FgCyan)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
	dim    = color.New(color.Faint)
	bold   = color.New(color.Bold)
)

func main() {
	query := flag.String("query", "", "research query to run once and exit")
	depth := flag.String("depth", "standard", "quick, standard, or comprehensive")
	format := flag.String("format", "markdown", "markdown, html, pdf, or json")
	interactive := flag.Bool("interactive", false, "drive the session one iteration at a time")
	flag.Parse()

	cfg := config.Load()
	if cfg.OpenRouterAPIKey == "" {
		fmt.Fprintln(os.Stderr, "Error: OPENROUTER_API_KEY environment variable not set")
		os.Exit(1)
	}

	store, err := session.NewStore(cfg.StateDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating session store: %v\n", err)
		os.Exit(1)
	}

	bus := events.NewBus(100)
	defer bus.Close()

	orch := orchestrator.New(cfg, bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	req := models.Request{
		Query:  *query,
		Depth:  parseDepth(*depth),
		Format: parseFormat(*format),
	}

	if *query != "" && !*interactive {
		runOnce(ctx, orch, req)
		return
	}

	runShell(ctx, orch, store, req)
}

func parseDepth(s string) models.Depth {
	switch strings.ToLower(s) {
	case "quick":
		return models.DepthQuick
	case "comprehensive":
		return models.DepthComprehensive
	default:
		return models.DepthStandard
	}
}

func parseFormat(s string) models.OutputFormat {
	switch strings.ToLower(s) {
	case "html":
		return models.FormatHTML
	case "pdf":
		return models.FormatPDF
	case "json":
		return models.FormatJSON
	default:
		return models.FormatMarkdown
	}
}

// runOnce drives Research(request) → ResearchResult to completion, printing
// progress as it streams in (SPEC_FULL.md §6).
func runOnce(ctx context.Context, orch *orchestrator.Orchestrator, req models.Request) {
	if req.Query == "" {
		fmt.Fprintln(os.Stderr, "Error: -query is required outside -interactive mode")
		os.Exit(1)
	}

	progress, err := orch.ExecuteStream(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	for p := range progress {
		renderProgress(p)
	}

	result, err := orch.Research(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	printReport(result)
}

func renderProgress(p models.ResearchProgress) {
	switch p.Type {
	case models.KindPlanGenerated:
		yellow.Printf("  plan: %d sub-questions, %d perspectives, %d queries\n",
			p.PlanGenerated.SubQuestionCount, p.PlanGenerated.PerspectiveCount, p.PlanGenerated.QueryCount)
	case models.KindSearchCompleted:
		dim.Printf("  [%d/%d] search: %d sources (%d failed)\n",
			p.CurrentIteration, p.MaxIterations, p.SearchCompleted.SourceCount, p.SearchCompleted.Failed)
	case models.KindAnalysisCompleted:
		dim.Printf("  [%d/%d] analysis: %d findings, sufficiency %.2f\n",
			p.CurrentIteration, p.MaxIterations, p.AnalysisCompleted.FindingCount, p.AnalysisCompleted.SufficiencyScore)
	case models.KindReportSection:
		cyan.Printf("  writing section: %s\n", p.ReportSection.Title)
	case models.KindCompleted:
		green.Printf("  done in %d iterations, cost $%.4f\n", p.Completed.IterationsRun, p.Completed.TotalCost)
	case models.KindFailed:
		red.Printf("  failed (%s): %s\n", p.Failed.Kind, p.Failed.Err)
	}
}

func printReport(result models.Result) {
	fmt.Println()
	bold.Println("Report:")
	fmt.Println(strings.Repeat("─", 60))
	fmt.Println(result.Report.Rendered)
	fmt.Println(strings.Repeat("─", 60))
	dim.Printf("%d sources, %d findings, %d iterations, $%.4f\n",
		len(result.CollectedSources), len(result.Findings), result.IterationsRun, result.TotalCost)
}

// runShell is a small readline loop over StartInteractive, letting the
// operator drive one session step at a time rather than the fully automatic
// five-phase loop.
func runShell(ctx context.Context, orch *orchestrator.Orchestrator, store *session.Store, req models.Request) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[36mresearch> \033[0m",
		HistoryFile:     config.Load().HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	cyan.Println("Type a query to start a session, then /continue, /addquery <text>, /checkpoint, /finalize, /exit.")

	var sess *orchestrator.Session

	for {
		line, err := rl.Readline()
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case line == "/exit":
			if sess != nil {
				sess.Dispose()
			}
			return
		case line == "/continue":
			if sess == nil {
				red.Println("no active session; type a query first")
				continue
			}
			sufficient, err := sess.Continue(ctx)
			if err != nil {
				red.Printf("continue failed: %v\n", err)
				continue
			}
			if sufficient {
				green.Println("session judges itself sufficient; /finalize when ready")
			} else {
				yellow.Println("continuing would help; run /continue again or /finalize")
			}
		case strings.HasPrefix(line, "/addquery "):
			if sess == nil {
				red.Println("no active session; type a query first")
				continue
			}
			if err := sess.AddQuery(strings.TrimPrefix(line, "/addquery ")); err != nil {
				red.Printf("addquery failed: %v\n", err)
			}
		case line == "/checkpoint":
			if sess == nil {
				red.Println("no active session; type a query first")
				continue
			}
			id, err := sess.Checkpoint()
			if err != nil {
				red.Printf("checkpoint failed: %v\n", err)
				continue
			}
			green.Printf("checkpointed as %s\n", id)
		case line == "/finalize":
			if sess == nil {
				red.Println("no active session; type a query first")
				continue
			}
			result, err := sess.Finalize(ctx)
			if err != nil {
				red.Printf("finalize failed: %v\n", err)
				continue
			}
			printReport(result)
			sess.Dispose()
			sess = nil
		default:
			if sess != nil {
				sess.Dispose()
			}
			r := req
			r.Query = line
			s, err := orch.StartInteractive(r, store)
			if err != nil {
				red.Printf("could not start session: %v\n", err)
				continue
			}
			sess = s
			green.Println("session started; /continue to run an iteration, /finalize to produce a report")
		}
	}
}
