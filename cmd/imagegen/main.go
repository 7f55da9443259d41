package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/davegraham/imagegen/internal/batch"
	"github.com/davegraham/imagegen/internal/config"
	"github.com/davegraham/imagegen/internal/display"
	"github.com/davegraham/imagegen/internal/generate"
	"github.com/davegraham/imagegen/internal/history"
	"github.com/davegraham/imagegen/internal/image"
	"github.com/davegraham/imagegen/internal/keys"
	"github.com/davegraham/imagegen/internal/provider"
	"github.com/davegraham/imagegen/internal/provider/openai"
	"github.com/davegraham/imagegen/internal/provider/openrouter"
	"github.com/davegraham/imagegen/internal/repl"
	"github.com/davegraham/imagegen/internal/session"
	"github.com/davegraham/imagegen/pkg/models"
)

var (
	version = "dev"
	commit  = "none"
)

// App carries the command dependencies so tests can swap out providers,
// stores, and terminal input.
type App struct {
	In       io.Reader
	Out      io.Writer
	Err      io.Writer
	Registry *models.ModelRegistry
	Config   *config.Config
	WorkDir  string

	Sessions *session.Store

	// NewHistory opens the global history database. Nil disables
	// history logging.
	NewHistory func() (*history.Store, error)

	ResolveKey func(explicitKey string, p models.ProviderType) (string, string, error)

	NewOpenRouter func(cfg *provider.Config, registry *models.ModelRegistry) (provider.Provider, error)
	NewOpenAI     func(cfg *provider.Config, registry *models.ModelRegistry) (provider.Provider, error)

	// ReadPassword reads a hidden line for `keys set`.
	ReadPassword func(fd int) ([]byte, error)
}

func DefaultApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	sessions, err := session.NewStore()
	if err != nil {
		return nil, err
	}
	workDir, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	return &App{
		In:       os.Stdin,
		Out:      os.Stdout,
		Err:      os.Stderr,
		Registry: models.DefaultRegistry(),
		Config:   cfg,
		WorkDir:  workDir,
		Sessions: sessions,
		NewHistory: func() (*history.Store, error) {
			return history.NewStore()
		},
		ResolveKey: keys.Resolve,
		NewOpenRouter: func(cfg *provider.Config, registry *models.ModelRegistry) (provider.Provider, error) {
			return openrouter.New(cfg, registry)
		},
		NewOpenAI: func(cfg *provider.Config, registry *models.ModelRegistry) (provider.Provider, error) {
			return openai.New(cfg, registry)
		},
		ReadPassword: term.ReadPassword,
	}, nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	app, err := DefaultApp()
	if err != nil {
		return err
	}
	return newRootCmd(app).Execute()
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imagegen",
		Short: "Generate and edit images from the command line",
		Long: `imagegen generates and edits images using AI image APIs.

Models are addressed by short aliases; with -m auto (the default) the
model is picked from keywords in the prompt. Each project directory
keeps its own session, so "edit" picks up where the last generation
left off.

Examples:
  imagegen generate "a sunset over mountains"
  imagegen generate -m gpt-image --transparent "logo design"
  imagegen edit "make the sky purple"
  imagegen batch prompts.txt`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetOut(app.Out)
	cmd.SetErr(app.Err)

	cmd.AddCommand(
		newGenerateCmd(app),
		newEditCmd(app),
		newStatusCmd(app),
		newClearCmd(app),
		newSetDirCmd(app),
		newModelsCmd(app),
		newHistoryCmd(app),
		newCostCmd(app),
		newKeysCmd(app),
		newBatchCmd(app),
		newReplCmd(app),
	)

	return cmd
}

// genFlags are the flags shared by generate, edit, and batch.
type genFlags struct {
	model       string
	output      string
	aspectRatio string
	imageSize   string
	size        string
	quality     string
	transparent bool
	fast        bool
	show        bool
	verbose     bool
	apiKey      string
	timeoutSec  int
}

func (f *genFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.model, "model", "m", "auto", "model alias, or auto to pick from the prompt")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output directory (persisted in the session)")
	cmd.Flags().StringVar(&f.aspectRatio, "aspect-ratio", "", "aspect ratio for nano-banana models (e.g. 16:9)")
	cmd.Flags().StringVar(&f.imageSize, "image-size", "", "resolution for nano-banana models (1K, 2K, 4K)")
	cmd.Flags().StringVarP(&f.size, "size", "s", "", "pixel size for gpt-image models (e.g. 1024x1024)")
	cmd.Flags().StringVarP(&f.quality, "quality", "q", "", "quality for gpt-image models (low, medium, high)")
	cmd.Flags().BoolVarP(&f.transparent, "transparent", "t", false, "transparent background (gpt-image models only)")
	cmd.Flags().BoolVar(&f.fast, "fast", false, "prefer the fast model during auto-selection")
	cmd.Flags().BoolVar(&f.show, "show", false, "display the result inline (kitty graphics protocol)")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "log HTTP requests and responses")
	cmd.Flags().StringVar(&f.apiKey, "api-key", "", "API key (overrides stored keys and environment)")
	cmd.Flags().IntVar(&f.timeoutSec, "timeout", 0, "HTTP timeout in seconds")
}

// modelAlias applies the config default when the flag was left on auto.
func (f *genFlags) modelAlias(app *App) string {
	if f.model == "auto" && app.Config != nil && app.Config.DefaultModel != "" {
		return app.Config.DefaultModel
	}
	return f.model
}

func (f *genFlags) providerConfig(app *App, apiKey string) *provider.Config {
	timeout := f.timeoutSec
	if timeout == 0 && app.Config != nil {
		timeout = app.Config.TimeoutSeconds
	}
	return &provider.Config{
		APIKey:     apiKey,
		TimeoutSec: timeout,
		Verbose:    f.verbose,
	}
}

// lazyProvider defers key resolution and construction until a request
// actually routes to the provider family, so a missing openai key does
// not block openrouter generations.
type lazyProvider struct {
	family models.ProviderType
	build  func() (provider.Provider, error)

	once sync.Once
	prov provider.Provider
	err  error
}

func (l *lazyProvider) Name() models.ProviderType {
	return l.family
}

func (l *lazyProvider) Generate(ctx context.Context, req *models.Request) (*models.ImagePayload, error) {
	l.once.Do(func() {
		l.prov, l.err = l.build()
	})
	if l.err != nil {
		return nil, l.err
	}
	return l.prov.Generate(ctx, req)
}

func newRunner(app *App, flags *genFlags) (*generate.Runner, func()) {
	factory := provider.NewFactory(app.Registry)
	factory.Register(&lazyProvider{
		family: models.ProviderOpenRouter,
		build: func() (provider.Provider, error) {
			key, _, err := app.ResolveKey(flags.apiKey, models.ProviderOpenRouter)
			if err != nil {
				return nil, err
			}
			return app.NewOpenRouter(flags.providerConfig(app, key), app.Registry)
		},
	})
	factory.Register(&lazyProvider{
		family: models.ProviderOpenAI,
		build: func() (provider.Provider, error) {
			key, _, err := app.ResolveKey(flags.apiKey, models.ProviderOpenAI)
			if err != nil {
				return nil, err
			}
			return app.NewOpenAI(flags.providerConfig(app, key), app.Registry)
		},
	})

	runner := &generate.Runner{
		Registry:  app.Registry,
		Providers: factory,
		Sessions:  app.Sessions,
		Saver:     image.NewSaver(),
		WorkDir:   app.WorkDir,
		Out:       app.Out,
		Err:       app.Err,
	}
	if app.Config != nil {
		runner.DefaultOutputDir = app.Config.OutputDir
	}

	cleanup := func() {}
	if app.NewHistory != nil {
		if hist, err := app.NewHistory(); err == nil {
			runner.History = hist
			cleanup = func() { hist.Close() }
		} else {
			fmt.Fprintf(app.Err, "Warning: history unavailable: %v\n", err)
		}
	}

	return runner, cleanup
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func showResult(app *App, path string) {
	if !display.IsTerminalSupported() {
		fmt.Fprintln(app.Err, "Warning: terminal does not support inline images, skipping --show")
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(app.Err, "Warning: cannot display image: %v\n", err)
		return
	}
	payload := &models.ImagePayload{Data: data, MIME: image.MIMEForPath(path)}
	if err := display.New(app.Out).Display(payload); err != nil {
		fmt.Fprintf(app.Err, "Warning: cannot display image: %v\n", err)
	}
}

func newGenerateCmd(app *App) *cobra.Command {
	flags := &genFlags{}
	cmd := &cobra.Command{
		Use:   "generate [prompt...]",
		Short: "Generate an image from a text prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			runner, cleanup := newRunner(app, flags)
			defer cleanup()

			path, err := runner.Run(ctx, generate.Options{
				Prompt:      strings.Join(args, " "),
				Operation:   generate.OpGenerate,
				ModelAlias:  flags.modelAlias(app),
				OutputDir:   flags.output,
				AspectRatio: flags.aspectRatio,
				ImageSize:   flags.imageSize,
				Size:        flags.size,
				Quality:     flags.quality,
				Transparent: flags.transparent,
				Fast:        flags.fast,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(app.Out, "Saved: %s\n", path)
			if flags.show {
				showResult(app, path)
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newEditCmd(app *App) *cobra.Command {
	flags := &genFlags{}
	var inputPath string
	cmd := &cobra.Command{
		Use:   "edit [prompt...]",
		Short: "Edit an image (defaults to the session's current image)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			runner, cleanup := newRunner(app, flags)
			defer cleanup()

			path, err := runner.Run(ctx, generate.Options{
				Prompt:      strings.Join(args, " "),
				Operation:   generate.OpEdit,
				ModelAlias:  flags.modelAlias(app),
				InputPath:   inputPath,
				OutputDir:   flags.output,
				AspectRatio: flags.aspectRatio,
				ImageSize:   flags.imageSize,
				Size:        flags.size,
				Quality:     flags.quality,
				Transparent: flags.transparent,
				Fast:        flags.fast,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(app.Out, "Saved: %s\n", path)
			if flags.show {
				showResult(app, path)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "image to edit (defaults to the session's current image)")
	return cmd
}

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session and configured API keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := app.Sessions.Load()
			if err != nil {
				return err
			}

			fmt.Fprintf(app.Out, "Session file: %s\n", app.Sessions.Path())

			if sess.CurrentImage != "" {
				fmt.Fprintf(app.Out, "Current image: %s\n", sess.CurrentImage)
			} else {
				fmt.Fprintln(app.Out, "Current image: none")
			}

			if sess.OutputDir != "" {
				fmt.Fprintf(app.Out, "Output directory: %s\n", sess.OutputDir)
			} else {
				fmt.Fprintln(app.Out, "Output directory: default (./generated-images)")
			}

			fmt.Fprintf(app.Out, "Generations: %d\n", len(sess.History))
			if last, ok := sess.Last(); ok {
				fmt.Fprintf(app.Out, "Last: %q (%s) -> %s\n", last.Prompt, last.Model, last.Output)
			}

			fmt.Fprintln(app.Out)
			fmt.Fprintln(app.Out, "API keys:")
			for _, family := range []models.ProviderType{models.ProviderOpenRouter, models.ProviderOpenAI} {
				if key, source, err := app.ResolveKey("", family); err == nil {
					fmt.Fprintf(app.Out, "  %s: %s (%s)\n", family, keys.MaskKey(key), source)
				} else {
					fmt.Fprintf(app.Out, "  %s: not set\n", family)
				}
			}
			return nil
		},
	}
}

func newClearCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the session file for this directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Sessions.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(app.Out, "Session cleared.")
			return nil
		},
	}
}

func newSetDirCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set-dir <directory>",
		Short: "Set the output directory for future generations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := expandPath(args[0])
			if err != nil {
				return err
			}

			sess, err := app.Sessions.Load()
			if err != nil {
				return err
			}
			sess.OutputDir = dir
			if err := app.Sessions.Save(sess); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Output directory set to %s\n", dir)
			return nil
		},
	}
}

func newModelsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List available model aliases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, alias := range app.Registry.List() {
				cap, _ := app.Registry.Get(alias)
				var notes []string
				if cap.SupportsTransparency {
					notes = append(notes, "transparency")
				}
				if cap.SupportsAspectRatio {
					notes = append(notes, "aspect-ratio")
				}
				suffix := ""
				if len(notes) > 0 {
					suffix = " [" + strings.Join(notes, ", ") + "]"
				}
				fmt.Fprintf(app.Out, "%-16s %s via %s%s\n", alias, cap.WireID, cap.Provider, suffix)
			}
			return nil
		},
	}
}

func newHistoryCmd(app *App) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent generations across all projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			store, err := app.NewHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Recent(ctx, limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(app.Out, "No generations recorded yet.")
				return nil
			}
			for _, rec := range records {
				fmt.Fprintf(app.Out, "%s  %-8s %-16s $%.4f  %q\n",
					history.FormatTimestamp(rec.Timestamp), rec.Operation, rec.Model, rec.Cost, truncatePrompt(rec.Prompt, 50))
				fmt.Fprintf(app.Out, "    -> %s\n", rec.OutputPath)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum records to show")
	return cmd
}

func newCostCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cost",
		Short: "Show estimated spend across all projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			store, err := app.NewHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			total, err := store.TotalCost(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Total: $%.4f across %d image(s)\n", total.TotalCost, total.ImageCount)

			byProvider, err := store.CostByProvider(ctx)
			if err != nil {
				return err
			}
			for _, pc := range byProvider {
				fmt.Fprintf(app.Out, "  %-12s $%.4f (%d image(s))\n", pc.Provider, pc.TotalCost, pc.ImageCount)
			}
			return nil
		},
	}
}

func newKeysCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage stored API keys",
	}
	cmd.AddCommand(newKeysSetCmd(app), newKeysListCmd(app), newKeysDeleteCmd(app))
	return cmd
}

func parseProviderArg(arg string) (models.ProviderType, error) {
	switch arg {
	case string(models.ProviderOpenRouter):
		return models.ProviderOpenRouter, nil
	case string(models.ProviderOpenAI):
		return models.ProviderOpenAI, nil
	default:
		return "", fmt.Errorf("unknown provider %q: use openrouter or openai", arg)
	}
}

func newKeysSetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set <provider> [key]",
		Short: "Store an API key (prompts when key is omitted)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			family, err := parseProviderArg(args[0])
			if err != nil {
				return err
			}

			var key string
			if len(args) == 2 {
				key = args[1]
			} else {
				fmt.Fprintf(app.Out, "Enter API key for %s: ", family)
				raw, err := app.ReadPassword(int(syscall.Stdin))
				fmt.Fprintln(app.Out)
				if err != nil {
					return fmt.Errorf("failed to read key: %w", err)
				}
				key = strings.TrimSpace(string(raw))
			}
			if key == "" {
				return fmt.Errorf("key cannot be empty")
			}

			store, err := keys.NewStore()
			if err != nil {
				return err
			}
			if err := store.Set(family, key); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Key for %s saved to %s\n", family, store.Path())
			return nil
		},
	}
}

func newKeysListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored API keys (masked)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := keys.NewStore()
			if err != nil {
				return err
			}
			providers, err := store.List()
			if err != nil {
				return err
			}
			if len(providers) == 0 {
				fmt.Fprintln(app.Out, "No keys stored.")
				return nil
			}
			for _, name := range providers {
				key, err := store.Get(models.ProviderType(name))
				if err != nil {
					return err
				}
				fmt.Fprintf(app.Out, "%-12s %s\n", name, keys.MaskKey(key))
			}
			return nil
		},
	}
}

func newKeysDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <provider>",
		Short: "Remove a stored API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			family, err := parseProviderArg(args[0])
			if err != nil {
				return err
			}
			store, err := keys.NewStore()
			if err != nil {
				return err
			}
			if err := store.Delete(family); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Key for %s deleted.\n", family)
			return nil
		},
	}
}

func newBatchCmd(app *App) *cobra.Command {
	flags := &genFlags{}
	var stopOnError bool
	var delayMs int
	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Generate images for every prompt in a .txt or .json file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			items, err := batch.ParseFile(args[0])
			if err != nil {
				return err
			}

			runner, cleanup := newRunner(app, flags)
			defer cleanup()

			proc := batch.NewProcessor(runner, app.Out, app.Err)
			results, err := proc.Process(ctx, items, &batch.Options{
				DefaultModel: flags.modelAlias(app),
				OutputDir:    flags.output,
				StopOnError:  stopOnError,
				DelayMs:      delayMs,
			})
			proc.PrintSummary(results)
			return err
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&stopOnError, "stop-on-error", false, "abort the batch on the first failure")
	cmd.Flags().IntVar(&delayMs, "delay-ms", 0, "pause between items in milliseconds")
	return cmd
}

func newReplCmd(app *App) *cobra.Command {
	flags := &genFlags{}
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive generate-then-edit loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			runner, cleanup := newRunner(app, flags)
			defer cleanup()

			r := repl.New(&repl.Config{
				In:        app.In,
				Out:       app.Out,
				Err:       app.Err,
				Runner:    runner,
				Sessions:  app.Sessions,
				Registry:  app.Registry,
				Displayer: display.New(app.Out),
				Model:     flags.modelAlias(app),
			})
			return r.Run(ctx)
		},
	}
	flags.register(cmd)
	return cmd
}

func truncatePrompt(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func expandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}
