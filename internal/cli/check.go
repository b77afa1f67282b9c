package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/athena/internal/client"
	"github.com/ppiankov/athena/internal/model"
	"github.com/ppiankov/athena/internal/page"
	"github.com/ppiankov/athena/internal/report"
	"github.com/ppiankov/athena/internal/verify"
	"github.com/ppiankov/athena/internal/worker"
)

var (
	fetchURL     string
	follow       bool
	explain      bool
	checkSources bool
	outJSON      string
	outMD        string
	noCache      bool
	checkTimeout time.Duration
	claimsMode   bool
	maxClaims    int
)

var checkCmd = &cobra.Command{
	Use:   "check [text...]",
	Short: "Check a claim and print the verdict",
	Long: `Check submits text to the fact-checking service, waits for the verdict
and prints it with its confidence, explanation and sources.

Text comes from the arguments, or from a web page with --fetch.

Example:
  athena check "The sky is blue"
  athena check --fetch https://example.com/article --check-sources
  athena check --fetch https://example.com/article --claims --max-claims 5
  athena check "Vaccines cause autism" --explain --json result.json --md result.md`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&fetchURL, "fetch", "", "check the visible text of this page")
	checkCmd.Flags().BoolVar(&follow, "follow", false, "stream progress events from the service while waiting")
	checkCmd.Flags().BoolVar(&explain, "explain", false, "add an educational note from the configured LLM provider")
	checkCmd.Flags().BoolVar(&checkSources, "check-sources", false, "check that every cited source is reachable")
	checkCmd.Flags().StringVar(&outJSON, "json", "", "write the result as JSON to this path")
	checkCmd.Flags().StringVar(&outMD, "md", "", "write the result as Markdown to this path")
	checkCmd.Flags().BoolVar(&noCache, "no-cache", false, "skip the verdict cache")
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 3*time.Minute, "give up after this long")
	checkCmd.Flags().BoolVar(&claimsMode, "claims", false, "with --fetch, check each claim-like sentence separately")
	checkCmd.Flags().IntVar(&maxClaims, "max-claims", 10, "maximum number of claims checked with --claims")
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	a, err := newApp(cfg, logger, appOptions{noCache: noCache})
	if err != nil {
		return err
	}
	defer a.close()

	if claimsMode {
		if fetchURL == "" {
			return fmt.Errorf("--claims requires --fetch <url>")
		}
		return runClaims(ctx, a)
	}

	text, err := checkInput(ctx, a, args)
	if err != nil {
		return err
	}

	if follow {
		stream, err := client.DialProgress(ctx, a.client.BaseURL(), client.WithStreamLogger(logger.Named("stream")))
		if err != nil {
			logger.Warn("progress stream unavailable", zap.Error(err))
		} else {
			defer stream.Close()
			go printProgress(stream.Events())
		}
	}

	out, err := a.coord.Check(ctx, text)
	if err != nil {
		return describeFailure(err, a.cfg)
	}

	if checkSources && len(out.Verdict.Sources) > 0 {
		out.Verdict.Sources = a.linkChecker().Check(ctx, out.Verdict.Sources)
	}

	if explain {
		if err := annotate(ctx, a, out); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: explanation unavailable: %v\n", err)
		}
	}

	return render(a, report.NewDocument(text, out, nil))
}

func checkInput(ctx context.Context, a *app, args []string) (string, error) {
	if fetchURL != "" {
		if len(args) > 0 {
			return "", fmt.Errorf("use either text arguments or --fetch, not both")
		}
		p, err := a.fetcher().FetchPage(ctx, fetchURL)
		if err != nil {
			return "", fmt.Errorf("fetch %s: %w", fetchURL, err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Fetched %q (%d chars)\n", p.Title, len(p.Text))
		}
		return strings.TrimSpace(p.Title + "\n" + p.Text), nil
	}

	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return "", fmt.Errorf("nothing to check: pass text or --fetch <url>")
	}
	return text, nil
}

// runClaims checks every claim-like sentence of the fetched page concurrently
func runClaims(ctx context.Context, a *app) error {
	p, err := a.fetcher().FetchPage(ctx, fetchURL)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", fetchURL, err)
	}

	claims := page.NewClaimExtractor().Extract(p.Text)
	if len(claims) == 0 {
		fmt.Printf("No check-worthy sentences found on %s\n", fetchURL)
		return nil
	}
	if maxClaims > 0 && len(claims) > maxClaims {
		claims = claims[:maxClaims]
	}

	inputs := make([]string, len(claims))
	for i, c := range claims {
		inputs[i] = c.Text
	}
	fmt.Fprintf(os.Stderr, "⚙️  Checking %d claims from %q...\n\n", len(inputs), p.Title)

	results := worker.NewBatchProcessor(a.coord, a.cfg.Concurrency.Workers).ProcessInputs(ctx, inputs)
	for _, r := range results {
		fmt.Printf("» %s\n", r.Input)
		a.renderer.RenderSummary(os.Stdout, report.NewDocument(r.Input, r.Outcome, r.Error))
		fmt.Println()
	}
	return nil
}

func annotate(ctx context.Context, a *app, out *model.Outcome) error {
	e, err := a.explainer()
	if err != nil {
		return err
	}
	return e.Annotate(ctx, out)
}

func render(a *app, doc report.Document) error {
	a.renderer.RenderSummary(os.Stdout, doc)

	if outJSON != "" {
		if err := a.renderer.RenderJSON(doc, outJSON); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", outJSON)
		}
	}
	if outMD != "" {
		if err := a.renderer.RenderMarkdown(doc, outMD); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote Markdown: %s\n", outMD)
		}
	}
	return nil
}

func printProgress(events <-chan model.ProgressEvent) {
	for ev := range events {
		switch {
		case ev.Type == "progress" && ev.Percentage > 0:
			fmt.Fprintf(os.Stderr, "… [%3.0f%%] %s\n", ev.Percentage, ev.Message)
		case ev.Message != "":
			fmt.Fprintf(os.Stderr, "… %s\n", ev.Message)
		}
	}
}

// describeFailure turns coordinator errors into messages a user can act on
func describeFailure(err error, c *model.Config) error {
	switch {
	case errors.Is(err, verify.ErrInvalidInput):
		return fmt.Errorf("cannot check this text: %w", err)
	case errors.Is(err, verify.ErrTimeout):
		return fmt.Errorf("no verdict after %d attempts, the service may be overloaded: %w", c.Polling.MaxAttempts, err)
	case errors.Is(err, verify.ErrStartFailed):
		return fmt.Errorf("could not reach the fact-checking service at %s: %w", c.API.BaseURL, err)
	default:
		return err
	}
}
