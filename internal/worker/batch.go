package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/athena/internal/model"
)

// Checker verifies a single input
type Checker interface {
	Check(ctx context.Context, text string) (*model.Outcome, error)
}

// CheckResult is the result of checking one input line
type CheckResult struct {
	Index   int
	Input   string
	Outcome *model.Outcome
	Error   error
}

// BatchProcessor checks many inputs concurrently through one Checker
type BatchProcessor struct {
	checker     Checker
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(checker Checker, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		checker:     checker,
		concurrency: concurrency,
	}
}

// ProcessInputs checks all inputs and returns results in input order
func (b *BatchProcessor) ProcessInputs(ctx context.Context, inputs []string) []*CheckResult {
	if len(inputs) == 0 {
		return []*CheckResult{}
	}

	pool := NewPool[*CheckResult](ctx, b.concurrency)
	pool.Start()

	// Submit from a goroutine so a full queue never blocks result draining
	go func() {
		defer pool.Close()
		for i, input := range inputs {
			idx, text := i, input
			ok := pool.Submit(JobFunc[*CheckResult](func(ctx context.Context) *CheckResult {
				outcome, err := b.checker.Check(ctx, text)
				return &CheckResult{Index: idx, Input: text, Outcome: outcome, Error: err}
			}))
			if !ok {
				return
			}
		}
	}()

	results := make([]*CheckResult, len(inputs))
	for result := range pool.Results() {
		results[result.Index] = result
	}

	// Inputs never run because ctx ended
	for i, r := range results {
		if r == nil {
			err := ctx.Err()
			if err == nil {
				err = fmt.Errorf("not processed")
			}
			results[i] = &CheckResult{Index: i, Input: inputs[i], Error: err}
		}
	}

	return results
}

// ProcessFile reads inputs from a file and checks them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*CheckResult, error) {
	inputs, err := ReadInputsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read inputs: %w", err)
	}

	return b.ProcessInputs(ctx, inputs), nil
}

// ReadInputsFromFile reads one input per line, skipping blanks and # comments.
// Duplicate lines are kept; the coordinator joins or serves them from cache.
func ReadInputsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var inputs []string

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		inputs = append(inputs, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return inputs, nil
}
