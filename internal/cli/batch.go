package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/cobra"

	"github.com/ppiankov/athena/internal/report"
	"github.com/ppiankov/athena/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	batchNoCache bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Check every line of a file",
	Long: `Batch checks one claim per line (blank lines and # comments are skipped).

All lines share one coordinator, so repeated lines are checked once and
answered from the shared request or the cache. A JSON report is written
for every line.

Example:
  athena batch claims.txt
  athena batch claims.txt --concurrency 8 --output-dir ./reports`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default: concurrency.workers)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./athena-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for the batch")
	batchCmd.Flags().BoolVar(&batchNoCache, "no-cache", false, "skip the verdict cache")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	workers := concurrency
	if workers <= 0 {
		workers = cfg.Concurrency.Workers
	}

	a, err := newApp(cfg, logger, appOptions{noCache: batchNoCache})
	if err != nil {
		return err
	}
	defer a.close()

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	fmt.Fprintf(os.Stderr, "⚙️  Checking %s with %d workers...\n\n", file, workers)

	results, err := worker.NewBatchProcessor(a.coord, workers).ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	success, failure := 0, 0
	for _, r := range results {
		doc := report.NewDocument(r.Input, r.Outcome, r.Error)
		path := filepath.Join(outputDir, reportName(r.Index, r.Input))
		if err := a.renderer.RenderJSON(doc, path); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write report: %v\n", preview(r.Input), err)
		}

		if r.Error != nil {
			failure++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", preview(r.Input), describeFailure(r.Error, a.cfg))
			continue
		}
		success++
		cached := ""
		if r.Outcome.Cached {
			cached = " (cached)"
		}
		fmt.Fprintf(os.Stderr, "✓ %s: %s %.0f%%%s\n", preview(r.Input), strings.ToUpper(string(r.Outcome.Verdict.Label)), r.Outcome.Verdict.Confidence, cached)
	}

	stats := a.coord.Stats()
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:       %d\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:     %d\n", success)
	fmt.Fprintf(os.Stderr, "  Failures:    %d\n", failure)
	fmt.Fprintf(os.Stderr, "  Requests:    %d started, %d polls\n", stats.Starts, stats.Polls)
	fmt.Fprintf(os.Stderr, "  Shared:      %d joined, %d from cache\n", stats.Joins, stats.CacheHits)
	fmt.Fprintf(os.Stderr, "  Output:      %s\n", outputDir)

	if failure > 0 && success == 0 {
		return fmt.Errorf("all %d checks failed", failure)
	}
	return nil
}

// reportName builds a stable, filesystem-safe file name for line index
func reportName(index int, input string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(input) {
		if b.Len() >= 48 {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash && b.Len() > 0 {
			b.WriteByte('-')
			lastDash = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "input"
	}
	return fmt.Sprintf("%03d-%s.json", index+1, slug)
}

func preview(s string) string {
	r := []rune(s)
	if len(r) > 60 {
		return string(r[:57]) + "..."
	}
	return s
}
