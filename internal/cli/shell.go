package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/ppiankov/athena/internal/report"
	"github.com/ppiankov/athena/internal/verify"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Check claims interactively, one per line",
	Long: `Shell reads claims from stdin, one per line, and checks each as it is entered.

Earlier checks keep running in the background. Only the first verdict to
arrive after your latest entry is shown; failures are always reported.

Commands:
  :stats   show coordinator counters
  :clear   drop cached verdicts
  :quit    exit (also Ctrl-D)`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, logger, appOptions{})
		if err != nil {
			return err
		}
		defer a.close()

		return runShell(cmd.Context(), a, os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

// runShell submits every line of in and renders displayable results to out
func runShell(ctx context.Context, a *app, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, quit := context.WithCancel(ctx)
	defer quit()

	var (
		slot  verify.Slot
		outMu sync.Mutex
		wg    sync.WaitGroup
	)

	printf := func(format string, args ...any) {
		outMu.Lock()
		defer outMu.Unlock()
		_, _ = fmt.Fprintf(out, format, args...)
	}

	scanner := bufio.NewScanner(in)
lines:
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case ":quit", ":q":
			// pending checks are withdrawn rather than awaited
			quit()
			break lines
		case ":stats":
			s := a.coord.Stats()
			printf("submissions=%d cache_hits=%d joins=%d starts=%d polls=%d in_flight=%d\n",
				s.Submissions, s.CacheHits, s.Joins, s.Starts, s.Polls, s.InFlight)
			continue
		case ":clear":
			if err := a.coord.ClearCache(); err != nil {
				printf("✗ clear cache: %v\n", err)
			} else {
				printf("✓ cache cleared\n")
			}
			continue
		}

		h, err := a.coord.Submit(line)
		if err != nil {
			printf("✗ %v\n", err)
			continue
		}
		slot.Claim(h)

		wg.Add(1)
		go func(text string, h *verify.Handle) {
			defer wg.Done()
			select {
			case <-h.Done():
			case <-ctx.Done():
				h.Cancel()
				return
			}
			if !slot.Offer(h) {
				return
			}

			outcome, err := h.Result()
			doc := report.NewDocument(text, outcome, err)
			if err != nil && errors.Is(err, verify.ErrTimeout) {
				doc.Error = describeFailure(err, a.cfg).Error()
			}

			outMu.Lock()
			defer outMu.Unlock()
			_, _ = fmt.Fprintf(out, "\n» %s\n", preview(text))
			a.renderer.RenderSummary(out, doc)
		}(line, h)
	}

	wg.Wait()
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}
