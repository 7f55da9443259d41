// Package generate runs the generate/edit flow: resolve a model, resolve
// the output directory and input image through the session, call the
// provider, save the result, and record it.
package generate

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/davegraham/imagegen/internal/cost"
	"github.com/davegraham/imagegen/internal/history"
	"github.com/davegraham/imagegen/internal/image"
	"github.com/davegraham/imagegen/internal/provider"
	"github.com/davegraham/imagegen/internal/session"
	"github.com/davegraham/imagegen/pkg/models"
)

const (
	OpGenerate = "generate"
	OpEdit     = "edit"

	defaultOutputSubdir = "generated-images"
	filePrefix          = "gen"
)

type Options struct {
	Prompt      string
	Operation   string // OpGenerate or OpEdit
	ModelAlias  string // empty or "auto" selects from the prompt
	InputPath   string
	OutputDir   string
	AspectRatio string
	ImageSize   string
	Size        string
	Quality     string
	Transparent bool
	Fast        bool
}

type Runner struct {
	Registry  *models.ModelRegistry
	Providers *provider.Factory
	Sessions  *session.Store
	Saver     *image.Saver
	History   *history.Store // optional; logging failures only warn
	WorkDir   string
	// DefaultOutputDir is the config-file fallback, consulted after
	// the flag and the session but before <cwd>/generated-images.
	DefaultOutputDir string
	Out       io.Writer
	Err       io.Writer
	Now       func() time.Time
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Run executes one invocation and returns the saved image path. The
// session is only mutated by the output-directory resolution (which is
// meant to stick) and by a successful generation.
func (r *Runner) Run(ctx context.Context, opts Options) (string, error) {
	sess, err := r.Sessions.Load()
	if err != nil {
		return "", err
	}

	alias := opts.ModelAlias
	if alias == "" || alias == "auto" {
		alias = models.Select(opts.Prompt, models.Signals{
			Transparent: opts.Transparent,
			Fast:        opts.Fast,
			HighRes:     opts.ImageSize == "4K",
		})
		fmt.Fprintf(r.Out, "Auto-selected model: %s\n", alias)
	}

	cap, ok := r.Registry.Get(alias)
	if !ok {
		return "", fmt.Errorf("%w %q: available: %s", models.ErrUnknownModel, alias, strings.Join(r.Registry.List(), ", "))
	}

	outDir, err := r.resolveOutputDir(sess, opts.OutputDir)
	if err != nil {
		return "", err
	}
	// Persist the directory choice right away so it sticks for later
	// invocations even if this generation fails.
	if err := r.Sessions.Save(sess); err != nil {
		return "", err
	}

	inputPath := opts.InputPath
	if inputPath == "" && opts.Operation == OpEdit {
		inputPath = sess.CurrentImage
	}
	if opts.Operation == OpEdit && inputPath == "" {
		return "", fmt.Errorf("no image to edit: generate one first or pass --input")
	}

	req, err := r.buildRequest(opts, alias, cap, inputPath)
	if err != nil {
		return "", err
	}

	prov, err := r.Providers.GetForAlias(alias)
	if err != nil {
		return "", err
	}

	fmt.Fprintf(r.Out, "Generating with %s (%s)...\n", alias, cap.WireID)
	if inputPath != "" {
		fmt.Fprintf(r.Out, "  Editing: %s\n", inputPath)
	}

	payload, err := prov.Generate(ctx, req)
	if err != nil {
		return "", err
	}

	savedPath, err := r.Saver.Save(payload, outDir, filePrefix)
	if err != nil {
		return "", err
	}

	sess.Record(session.GenerationRecord{
		Prompt:    opts.Prompt,
		Model:     alias,
		Input:     inputPath,
		Output:    savedPath,
		Timestamp: r.now().Format(time.RFC3339),
	})
	if err := r.Sessions.Save(sess); err != nil {
		return "", err
	}

	r.logHistory(ctx, opts, cap, alias, inputPath, savedPath, req)

	return savedPath, nil
}

func (r *Runner) resolveOutputDir(sess *session.Session, explicit string) (string, error) {
	if explicit != "" {
		abs, err := absPath(explicit)
		if err != nil {
			return "", err
		}
		sess.OutputDir = abs
		return abs, nil
	}
	if sess.OutputDir != "" {
		return sess.OutputDir, nil
	}
	if r.DefaultOutputDir != "" {
		abs, err := absPath(r.DefaultOutputDir)
		if err != nil {
			return "", err
		}
		sess.OutputDir = abs
		return abs, nil
	}
	dir := filepath.Join(r.WorkDir, defaultOutputSubdir)
	sess.OutputDir = dir
	return dir, nil
}

func (r *Runner) buildRequest(opts Options, alias string, cap *models.ModelCapabilities, inputPath string) (*models.Request, error) {
	req := models.NewRequest(opts.Prompt)
	req.Alias = alias
	req.WireID = cap.WireID
	req.AspectRatio = opts.AspectRatio
	req.ImageSize = opts.ImageSize
	req.Transparent = opts.Transparent
	if opts.Size != "" {
		req.Size = opts.Size
	}
	if opts.Quality != "" {
		req.Quality = opts.Quality
	}

	if inputPath != "" {
		data, err := os.ReadFile(inputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read input image: %w", err)
		}
		req.InputImage = data
		req.InputMIME = image.MIMEForPath(inputPath)
	}

	return req, nil
}

func (r *Runner) logHistory(ctx context.Context, opts Options, cap *models.ModelCapabilities, alias, inputPath, savedPath string, req *models.Request) {
	if r.History == nil {
		return
	}

	operation := opts.Operation
	if operation == "" {
		operation = OpGenerate
	}

	rec := &history.Record{
		ProjectDir: r.WorkDir,
		Operation:  operation,
		Prompt:     opts.Prompt,
		Model:      alias,
		Provider:   string(cap.Provider),
		InputPath:  inputPath,
		OutputPath: savedPath,
		Cost:       cost.Estimate(cap.Provider, cap.WireID, req.Size, req.Quality),
		Timestamp:  r.now(),
	}
	if err := r.History.Append(ctx, rec); err != nil {
		fmt.Fprintf(r.Err, "Warning: failed to record history: %v\n", err)
	}
}

func absPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %q: %w", path, err)
	}
	return abs, nil
}
