// Package repl implements the interactive mode: a prompt loop for the
// iterative generate-then-edit workflow, sharing the same session as
// the one-shot commands.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/davegraham/imagegen/internal/display"
	"github.com/davegraham/imagegen/internal/generate"
	"github.com/davegraham/imagegen/internal/session"
	"github.com/davegraham/imagegen/pkg/models"
)

// Runner executes one generation. *generate.Runner satisfies it.
type Runner interface {
	Run(ctx context.Context, opts generate.Options) (string, error)
}

type REPL struct {
	in        io.Reader
	out       io.Writer
	err       io.Writer
	runner    Runner
	sessions  *session.Store
	registry  *models.ModelRegistry
	displayer *display.Displayer
	model     string
	commands  map[string]Command
	running   bool
}

type Config struct {
	In        io.Reader
	Out       io.Writer
	Err       io.Writer
	Runner    Runner
	Sessions  *session.Store
	Registry  *models.ModelRegistry
	Displayer *display.Displayer
	Model     string
}

func New(cfg *Config) *REPL {
	model := cfg.Model
	if model == "" {
		model = "auto"
	}
	r := &REPL{
		in:        cfg.In,
		out:       cfg.Out,
		err:       cfg.Err,
		runner:    cfg.Runner,
		sessions:  cfg.Sessions,
		registry:  cfg.Registry,
		displayer: cfg.Displayer,
		model:     model,
		commands:  make(map[string]Command),
	}
	r.registerCommands()
	return r
}

func (r *REPL) Run(ctx context.Context) error {
	r.running = true
	r.printWelcome()

	scanner := bufio.NewScanner(r.in)
	for r.running {
		r.printPrompt()
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if err := r.execute(ctx, line); err != nil {
			fmt.Fprintf(r.err, "Error: %v\n", err)
		}
	}

	return scanner.Err()
}

func (r *REPL) execute(ctx context.Context, line string) error {
	parts := parseCommand(line)
	if len(parts) == 0 {
		return nil
	}

	cmdName := strings.ToLower(parts[0])
	args := parts[1:]

	cmd, ok := r.commands[cmdName]
	if !ok {
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", cmdName)
	}

	return cmd.Execute(ctx, r, args)
}

func (r *REPL) Stop() {
	r.running = false
}

func (r *REPL) printWelcome() {
	fmt.Fprintln(r.out, "imagegen interactive mode")
	fmt.Fprintln(r.out, "Type 'help' for available commands, 'quit' to exit.")
	fmt.Fprintln(r.out)
}

func (r *REPL) printPrompt() {
	sess, err := r.sessions.Load()
	if err == nil && sess.CurrentImage != "" {
		fmt.Fprintf(r.out, "imagegen [%s] (%s)> ", r.model, filepath.Base(sess.CurrentImage))
		return
	}
	fmt.Fprintf(r.out, "imagegen [%s]> ", r.model)
}

// parseCommand splits a line into fields, keeping quoted prompts
// together so `edit "make it blue"` is two parts.
func parseCommand(line string) []string {
	var parts []string
	var current strings.Builder
	inQuotes := false
	quoteChar := rune(0)

	for _, ch := range line {
		switch {
		case ch == '"' || ch == '\'':
			if inQuotes && ch == quoteChar {
				inQuotes = false
				quoteChar = 0
			} else if !inQuotes {
				inQuotes = true
				quoteChar = ch
			} else {
				current.WriteRune(ch)
			}
		case ch == ' ' && !inQuotes:
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(ch)
		}
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}

	return parts
}
