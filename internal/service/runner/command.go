package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/oshokin/script-bundler/internal/bundle"
	"github.com/oshokin/script-bundler/internal/logger"
)

const (
	// bundleDirEnv exposes the extraction directory to the packaged program.
	bundleDirEnv = "BUNDLE_DIR"
	// bundleNameEnv exposes the bundle's base name to the packaged program.
	bundleNameEnv = "BUNDLE_NAME"
	// keepRunDirEnv, when set to a non-empty value, keeps the extraction
	// directory after the program exits. Useful for debugging hooks.
	keepRunDirEnv = "BUNDLE_KEEP_RUN_DIR"
)

// errHookFailed indicates that a runtime hook exited with a non-zero status.
var errHookFailed = errors.New("runtime hook failed")

// Options contains inputs for the run entry point.
type Options struct {
	// ArtifactPath is the bundle to execute. Defaults to the running
	// executable, which is the normal stub case.
	ArtifactPath string
	// Args are passed through to the entry script unchanged.
	Args []string
}

// run holds the state of a single artifact execution.
type run struct {
	// opts are the caller's inputs after defaulting.
	opts *Options
	// reader gives access to the opened artifact.
	reader *bundle.Reader
	// dir is the per-run extraction directory.
	dir string
}

// Run executes the artifact's payload and returns the entry script's exit
// code. A non-nil error means the payload never ran (or a hook refused the
// launch); in that case the exit code is non-zero.
func Run(ctx context.Context, opts *Options) (int, error) {
	ctx = logger.WithName(ctx, "bundle-run")

	r, err := newRun(ctx, opts)
	if err != nil {
		return 1, err
	}

	defer r.cleanup(ctx)

	return r.run(ctx)
}

// newRun opens the artifact and extracts its payload into a fresh run directory.
func newRun(ctx context.Context, opts *Options) (*run, error) {
	if opts.ArtifactPath == "" {
		selfPath, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate own executable: %w", err)
		}

		opts.ArtifactPath = selfPath
	}

	reader, err := bundle.Open(opts.ArtifactPath)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", reader.Manifest.Name+"-run-*")
	if err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}

	logger.DebugKV(ctx, "Extracting payload", "dir", dir)

	if err = reader.Extract(dir); err != nil {
		_ = os.RemoveAll(dir)

		return nil, err
	}

	return &run{
		opts:   opts,
		reader: reader,
		dir:    dir,
	}, nil
}

// run executes the hooks and then the entry script.
func (r *run) run(ctx context.Context) (int, error) {
	environment := append(os.Environ(),
		bundleDirEnv+"="+r.dir,
		bundleNameEnv+"="+r.reader.Manifest.Name)

	for _, hook := range r.reader.Manifest.RuntimeHooks {
		if err := r.runHook(ctx, hook, environment); err != nil {
			return 1, err
		}
	}

	return r.runEntry(ctx, environment)
}

// runHook executes one runtime hook with the manifest interpreter.
// Hook output goes to the caller's streams.
func (r *run) runHook(ctx context.Context, hook string, environment []string) error {
	logger.DebugKV(ctx, "Running hook", "hook", hook)

	cmd := r.interpreterCommand(ctx, filepath.Join(r.dir, filepath.FromSlash(hook)), nil)
	cmd.Env = environment

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s: %v", errHookFailed, hook, err)
	}

	return nil
}

// runEntry executes the entry script and maps its result to an exit code.
func (r *run) runEntry(ctx context.Context, environment []string) (int, error) {
	entry := filepath.Join(r.dir, filepath.FromSlash(r.reader.Manifest.EntryScript))

	cmd := r.interpreterCommand(ctx, entry, r.opts.Args)
	cmd.Env = environment
	cmd.Stdin = os.Stdin

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// The script ran and chose its own exit code, so there is
		// nothing to report beyond propagating it.
		return exitErr.ExitCode(), nil
	}

	return 1, fmt.Errorf("run entry script: %w", err)
}

// interpreterCommand builds an interpreter invocation for one payload script.
func (r *run) interpreterCommand(ctx context.Context, scriptPath string, args []string) *exec.Cmd {
	manifest := r.reader.Manifest

	argv := make([]string, 0, len(manifest.InterpreterArgs)+1+len(args))
	argv = append(argv, manifest.InterpreterArgs...)
	argv = append(argv, scriptPath)
	argv = append(argv, args...)

	cmd := exec.CommandContext(ctx, manifest.Interpreter, argv...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd
}

// cleanup removes the run directory unless the caller asked to keep it.
func (r *run) cleanup(ctx context.Context) {
	if os.Getenv(keepRunDirEnv) != "" {
		logger.InfoKV(ctx, "Keeping run directory", "dir", r.dir)

		return
	}

	if err := os.RemoveAll(r.dir); err != nil {
		logger.Infof(ctx, "Unable to remove run directory: %v", err)
	}
}
