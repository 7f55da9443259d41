package batch

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/davegraham/imagegen/internal/generate"
)

type Result struct {
	Index    int
	Prompt   string
	Path     string
	Error    error
	Duration time.Duration
}

type Options struct {
	DefaultModel string
	OutputDir    string
	StopOnError  bool
	DelayMs      int
}

// ItemRunner executes one generation. *generate.Runner satisfies it.
type ItemRunner interface {
	Run(ctx context.Context, opts generate.Options) (string, error)
}

// Processor runs batch items sequentially. The session file is a single
// shared document, so items never run concurrently.
type Processor struct {
	runner ItemRunner
	out    io.Writer
	err    io.Writer
}

func NewProcessor(runner ItemRunner, out, errOut io.Writer) *Processor {
	return &Processor{
		runner: runner,
		out:    out,
		err:    errOut,
	}
}

func (p *Processor) Process(ctx context.Context, items []Item, opts *Options) ([]Result, error) {
	results := make([]Result, len(items))
	total := len(items)

	for i, item := range items {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		result := p.processItem(ctx, item, opts, i+1, total)
		results[i] = result

		if result.Error != nil && opts.StopOnError {
			return results, fmt.Errorf("stopped at item %d: %w", i+1, result.Error)
		}

		if opts.DelayMs > 0 && i < len(items)-1 {
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			case <-time.After(time.Duration(opts.DelayMs) * time.Millisecond):
			}
		}
	}

	return results, nil
}

func (p *Processor) processItem(ctx context.Context, item Item, opts *Options, current, total int) Result {
	start := time.Now()
	result := Result{
		Index:  item.Index,
		Prompt: item.Prompt,
	}

	fmt.Fprintf(p.out, "[%d/%d] %q...\n", current, total, truncate(item.Prompt, 50))

	model := item.Model
	if model == "" {
		model = opts.DefaultModel
	}

	runOpts := generate.Options{
		Prompt:      item.Prompt,
		Operation:   generate.OpGenerate,
		ModelAlias:  model,
		OutputDir:   opts.OutputDir,
		AspectRatio: item.AspectRatio,
		ImageSize:   item.ImageSize,
		Size:        item.Size,
		Quality:     item.Quality,
		Transparent: item.Transparent,
	}

	path, err := p.runner.Run(ctx, runOpts)
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = err
		fmt.Fprintf(p.err, "       Error: %v\n", err)
		return result
	}

	result.Path = path
	fmt.Fprintf(p.out, "       Saved: %s\n", path)
	return result
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func (p *Processor) PrintSummary(results []Result) {
	var successful, failed int
	var errors []Result

	for _, r := range results {
		if r.Error != nil {
			failed++
			errors = append(errors, r)
		} else {
			successful++
		}
	}

	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, "Summary:")
	fmt.Fprintf(p.out, "  Successful: %d/%d images\n", successful, len(results))
	if failed > 0 {
		fmt.Fprintf(p.out, "  Failed: %d (see errors below)\n", failed)
	}

	if len(errors) > 0 {
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out, "Errors:")
		for _, e := range errors {
			fmt.Fprintf(p.out, "  [%d] %q: %v\n", e.Index, truncate(e.Prompt, 40), e.Error)
		}
	}
}
