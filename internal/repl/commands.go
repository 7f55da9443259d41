package repl

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/davegraham/imagegen/internal/display"
	"github.com/davegraham/imagegen/internal/generate"
	"github.com/davegraham/imagegen/internal/image"
	"github.com/davegraham/imagegen/pkg/models"
)

type Command interface {
	Name() string
	Aliases() []string
	Description() string
	Usage() string
	Execute(ctx context.Context, r *REPL, args []string) error
}

func (r *REPL) registerCommands() {
	commands := []Command{
		&GenerateCommand{},
		&EditCommand{},
		&ModelCommand{},
		&ShowCommand{},
		&StatusCommand{},
		&DirCommand{},
		&ClearCommand{},
		&HelpCommand{},
		&QuitCommand{},
	}

	for _, cmd := range commands {
		r.commands[cmd.Name()] = cmd
		for _, alias := range cmd.Aliases() {
			r.commands[alias] = cmd
		}
	}
}

// GenerateCommand generates a new image
type GenerateCommand struct{}

func (c *GenerateCommand) Name() string        { return "generate" }
func (c *GenerateCommand) Aliases() []string   { return []string{"gen", "g"} }
func (c *GenerateCommand) Description() string { return "Generate a new image from a prompt" }
func (c *GenerateCommand) Usage() string       { return "generate <prompt>" }

func (c *GenerateCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: %s", c.Usage())
	}

	path, err := r.runner.Run(ctx, generate.Options{
		Prompt:     strings.Join(args, " "),
		Operation:  generate.OpGenerate,
		ModelAlias: r.model,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(r.out, "Saved: %s\n", path)
	return nil
}

// EditCommand edits the session's current image
type EditCommand struct{}

func (c *EditCommand) Name() string        { return "edit" }
func (c *EditCommand) Aliases() []string   { return []string{"e"} }
func (c *EditCommand) Description() string { return "Edit the current image with a prompt" }
func (c *EditCommand) Usage() string       { return "edit <prompt>" }

func (c *EditCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: %s", c.Usage())
	}

	path, err := r.runner.Run(ctx, generate.Options{
		Prompt:     strings.Join(args, " "),
		Operation:  generate.OpEdit,
		ModelAlias: r.model,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(r.out, "Saved: %s\n", path)
	return nil
}

// ModelCommand shows or switches the active model alias
type ModelCommand struct{}

func (c *ModelCommand) Name() string        { return "model" }
func (c *ModelCommand) Aliases() []string   { return []string{"m"} }
func (c *ModelCommand) Description() string { return "Show or switch the active model" }
func (c *ModelCommand) Usage() string       { return "model [alias|auto]" }

func (c *ModelCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		fmt.Fprintf(r.out, "Current model: %s\n", r.model)
		fmt.Fprintf(r.out, "Available: auto, %s\n", strings.Join(r.registry.List(), ", "))
		return nil
	}

	alias := args[0]
	if alias != "auto" {
		if _, ok := r.registry.Get(alias); !ok {
			return fmt.Errorf("%w: %s (available: %s)", models.ErrUnknownModel, alias, strings.Join(r.registry.List(), ", "))
		}
	}
	r.model = alias
	fmt.Fprintf(r.out, "Model set to %s\n", alias)
	return nil
}

// ShowCommand displays the current image inline
type ShowCommand struct{}

func (c *ShowCommand) Name() string        { return "show" }
func (c *ShowCommand) Aliases() []string   { return []string{"display", "view"} }
func (c *ShowCommand) Description() string { return "Display the current image" }
func (c *ShowCommand) Usage() string       { return "show" }

func (c *ShowCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	sess, err := r.sessions.Load()
	if err != nil {
		return err
	}
	if sess.CurrentImage == "" {
		return fmt.Errorf("no current image: generate one first")
	}
	if !display.IsTerminalSupported() {
		return fmt.Errorf("terminal does not support inline images")
	}

	data, err := os.ReadFile(sess.CurrentImage)
	if err != nil {
		return fmt.Errorf("cannot read current image: %w", err)
	}
	return r.displayer.Display(&models.ImagePayload{
		Data: data,
		MIME: image.MIMEForPath(sess.CurrentImage),
	})
}

// StatusCommand summarizes the session
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Aliases() []string   { return []string{"st"} }
func (c *StatusCommand) Description() string { return "Show the current session" }
func (c *StatusCommand) Usage() string       { return "status" }

func (c *StatusCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	sess, err := r.sessions.Load()
	if err != nil {
		return err
	}

	if sess.CurrentImage != "" {
		fmt.Fprintf(r.out, "Current image: %s\n", sess.CurrentImage)
	} else {
		fmt.Fprintln(r.out, "Current image: none")
	}
	if sess.OutputDir != "" {
		fmt.Fprintf(r.out, "Output directory: %s\n", sess.OutputDir)
	}
	fmt.Fprintf(r.out, "Generations: %d\n", len(sess.History))
	if last, ok := sess.Last(); ok {
		fmt.Fprintf(r.out, "Last: %q (%s)\n", last.Prompt, last.Model)
	}
	return nil
}

// DirCommand sets the session output directory
type DirCommand struct{}

func (c *DirCommand) Name() string        { return "dir" }
func (c *DirCommand) Aliases() []string   { return []string{"set-dir"} }
func (c *DirCommand) Description() string { return "Set the output directory" }
func (c *DirCommand) Usage() string       { return "dir <directory>" }

func (c *DirCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", c.Usage())
	}

	sess, err := r.sessions.Load()
	if err != nil {
		return err
	}
	sess.OutputDir = args[0]
	if err := r.sessions.Save(sess); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Output directory set to %s\n", args[0])
	return nil
}

// ClearCommand deletes the session file
type ClearCommand struct{}

func (c *ClearCommand) Name() string        { return "clear" }
func (c *ClearCommand) Aliases() []string   { return nil }
func (c *ClearCommand) Description() string { return "Delete the session for this directory" }
func (c *ClearCommand) Usage() string       { return "clear" }

func (c *ClearCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	if err := r.sessions.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(r.out, "Session cleared.")
	return nil
}

// HelpCommand lists commands
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Aliases() []string   { return []string{"?"} }
func (c *HelpCommand) Description() string { return "Show available commands" }
func (c *HelpCommand) Usage() string       { return "help" }

func (c *HelpCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	seen := make(map[string]Command)
	for _, cmd := range r.commands {
		seen[cmd.Name()] = cmd
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(r.out, "Commands:")
	for _, name := range names {
		cmd := seen[name]
		label := cmd.Usage()
		if aliases := cmd.Aliases(); len(aliases) > 0 {
			label = fmt.Sprintf("%s (%s)", label, strings.Join(aliases, ", "))
		}
		fmt.Fprintf(r.out, "  %-36s %s\n", label, cmd.Description())
	}
	return nil
}

// QuitCommand exits the loop
type QuitCommand struct{}

func (c *QuitCommand) Name() string        { return "quit" }
func (c *QuitCommand) Aliases() []string   { return []string{"exit", "q"} }
func (c *QuitCommand) Description() string { return "Exit interactive mode" }
func (c *QuitCommand) Usage() string       { return "quit" }

func (c *QuitCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	r.Stop()
	fmt.Fprintln(r.out, "Bye.")
	return nil
}
