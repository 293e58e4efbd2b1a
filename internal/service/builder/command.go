package builder

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/script-bundler/internal/bundle"
	"github.com/oshokin/script-bundler/internal/config"
	"github.com/oshokin/script-bundler/internal/descriptor"
	"github.com/oshokin/script-bundler/internal/logger"
	"github.com/oshokin/script-bundler/internal/peutil"
	"github.com/oshokin/script-bundler/internal/repository/buildrec"
	"github.com/oshokin/script-bundler/internal/resource"
	"github.com/oshokin/script-bundler/internal/version"
)

// Options contains inputs for the build entry point.
type Options struct {
	// DescriptorPath is the bundle descriptor to build.
	DescriptorPath string
	// OutputDir receives the artifact and release manifest (defaults to dist).
	OutputDir string
	// StubPath overrides the runtime stub location.
	StubPath string
	// ConfigPath is an optional path to bundler settings.
	ConfigPath string
}

// errBuildRunning indicates that another build is already running in the
// same output directory.
var errBuildRunning = errors.New("a build is already running in the output directory")

// build holds the state of a single build execution.
// It is unexported—callers should use Run, which encapsulates setup and validation.
type build struct {
	// opts are the caller's inputs after defaulting.
	opts *Options
	// cfg holds tool-level settings (stub override only matters here).
	cfg *config.Config
	// desc is the loaded bundle descriptor.
	desc *descriptor.Descriptor
	// records persists build audit entries.
	records buildrec.Repository
	// startedAt timestamps the build for its record.
	startedAt time.Time
}

// Run executes the build workflow.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "bundle-build")

	b, err := newBuild(ctx, opts)
	if err != nil {
		return err
	}

	defer b.cleanup(ctx)

	artifactPath, err := b.run(ctx)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	logger.InfoKV(ctx, "Build completed successfully", "artifact", artifactPath)

	return nil
}

// newBuild prepares the run: loads settings and the descriptor, then writes
// the marker that prevents concurrent builds in the same output directory.
func newBuild(ctx context.Context, opts *Options) (*build, error) {
	if opts.OutputDir == "" {
		opts.OutputDir = DefaultOutputDir
	}

	cfg, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	if err = os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", bundle.ErrOutputWrite, err)
	}

	if IsBuildRunningNow(ctx, opts.OutputDir) {
		return nil, errBuildRunning
	}

	marker, err := os.Create(filepath.Join(opts.OutputDir, MarkerFilename))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", bundle.ErrOutputWrite, err)
	}

	if err = marker.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", bundle.ErrOutputWrite, err)
	}

	desc, err := descriptor.Load(opts.DescriptorPath)
	if err != nil {
		_ = os.Remove(filepath.Join(opts.OutputDir, MarkerFilename))

		return nil, err
	}

	return &build{
		opts:      opts,
		cfg:       cfg,
		desc:      desc,
		records:   buildrec.NewFileRepository(filepath.Join(opts.OutputDir, RecordsFilename)),
		startedAt: time.Now().UTC(),
	}, nil
}

// run produces the artifact and its release manifest, returning the artifact path.
func (b *build) run(ctx context.Context) (string, error) {
	logger.InfoKV(ctx, "Building bundle", "name", b.desc.Output.Name, "descriptor", b.opts.DescriptorPath)

	stubPath, err := findStub(b.opts.StubPath, b.cfg.StubPath)
	if err != nil {
		return "", err
	}

	logger.DebugKV(ctx, "Using runtime stub", "path", stubPath)

	artifactName := artifactFileName(b.desc.Output.Name)
	finalPath := filepath.Join(b.opts.OutputDir, artifactName)
	tempPath := finalPath + ".partial"

	if err = bundle.CopyFile(tempPath, stubPath, DefaultFileMode); err != nil {
		return "", err
	}

	// The temp file is removed on any failure below.
	defer func() {
		_ = os.Remove(tempPath)
	}()

	if err = b.prepareStub(ctx, tempPath); err != nil {
		return "", err
	}

	payload, err := b.buildPayload()
	if err != nil {
		return "", err
	}

	if err = bundle.AppendPayload(tempPath, payload); err != nil {
		return "", err
	}

	if err = os.Rename(tempPath, finalPath); err != nil {
		return "", fmt.Errorf("%w: %v", bundle.ErrOutputWrite, err)
	}

	checksum, err := b.writeRelease(ctx, finalPath, artifactName)
	if err != nil {
		return "", err
	}

	b.saveRecord(ctx, finalPath, checksum)

	return finalPath, nil
}

// prepareStub applies strip, resource embedding and the console subsystem
// switch to the stub copy before the payload is appended.
func (b *build) prepareStub(ctx context.Context, stubCopy string) error {
	if b.desc.Output.StripSymbols {
		b.stripSymbols(ctx, stubCopy)
	}

	if !targetEmbedsResources() {
		if b.desc.Output.Icon != "" || b.desc.Output.VersionResource != "" {
			logger.Info(ctx, "Target platform does not embed resources, skipping icon and version metadata")
		}

		return nil
	}

	if err := b.desc.ValidateResources(); err != nil {
		return err
	}

	var vr *resource.VersionResource

	if b.desc.Output.VersionResource != "" {
		loaded, err := resource.LoadVersionResource(b.desc.Output.VersionResource)
		if err != nil {
			return err
		}

		vr = loaded
	}

	if err := resource.Embed(stubCopy, b.desc.Output.Icon, vr); err != nil {
		return err
	}

	if !b.desc.Output.Console {
		logger.Debug(ctx, "Detaching console from the artifact")

		if err := peutil.SetSubsystem(stubCopy, peutil.SubsystemGUI); err != nil {
			return err
		}
	}

	return nil
}

// stripSymbols runs the host strip tool on the stub copy, best effort.
func (b *build) stripSymbols(ctx context.Context, stubCopy string) {
	if targetEmbedsResources() {
		logger.Info(ctx, "Symbol stripping is not supported for Windows artifacts, skipping")
		return
	}

	if err := exec.CommandContext(ctx, "strip", stubCopy).Run(); err != nil {
		logger.Warnf(ctx, "Unable to strip symbols from the stub: %v", err)
	}
}

// buildPayload resolves every input file and packs the payload.
func (b *build) buildPayload() (*bundle.Payload, error) {
	interpreter, interpreterArgs, err := b.desc.ResolveInterpreter()
	if err != nil {
		return nil, err
	}

	entryPayloadPath := path.Join("app", filepath.Base(b.desc.EntryScript))

	inputs := []bundle.Input{
		{PayloadPath: entryPayloadPath, SourcePath: b.desc.EntryScript},
	}

	for _, data := range b.desc.BundledData {
		inputs = append(inputs, bundle.Input{
			PayloadPath: filepath.ToSlash(filepath.Clean(data.Destination)),
			SourcePath:  data.Source,
		})
	}

	imports, err := bundle.ResolveImports(b.desc.HiddenImports, b.desc.SearchPaths)
	if err != nil {
		return nil, err
	}

	hookOrder, hooks, err := bundle.ResolveHooks(b.desc.RuntimeHooks, b.desc.HookPaths, b.desc.SearchPaths)
	if err != nil {
		return nil, err
	}

	// Excludes apply to resolved extras only, never to the entry script
	// or bundled data.
	extras := make(map[string]string, len(imports)+len(hooks))
	for payloadPath, source := range imports {
		extras[payloadPath] = source
	}

	for payloadPath, source := range hooks {
		extras[payloadPath] = source
	}

	extras, err = bundle.ApplyExcludes(extras, b.desc.Excludes)
	if err != nil {
		return nil, err
	}

	for payloadPath, source := range extras {
		inputs = append(inputs, bundle.Input{PayloadPath: payloadPath, SourcePath: source})
	}

	keptHooks := make([]string, 0, len(hookOrder))
	for _, payloadPath := range hookOrder {
		if _, kept := extras[payloadPath]; kept {
			keptHooks = append(keptHooks, payloadPath)
		}
	}

	return bundle.BuildPayload(&bundle.Spec{
		Name:            b.desc.Output.Name,
		Version:         version.Short(),
		EntryScript:     entryPayloadPath,
		Interpreter:     interpreter,
		InterpreterArgs: interpreterArgs,
		Console:         b.desc.Output.Console,
		RuntimeHooks:    keptHooks,
		Inputs:          inputs,
		Compress:        b.desc.Output.Compress,
	})
}

// writeRelease hashes the finished artifact and writes the release manifest
// next to it, returning the artifact checksum.
func (b *build) writeRelease(ctx context.Context, artifactPath, artifactName string) (string, error) {
	checksum, err := bundle.FileChecksum(artifactPath)
	if err != nil {
		return "", err
	}

	encoded := base64.StdEncoding.EncodeToString(checksum)

	release := &Release{
		Version:  version.Short(),
		Name:     b.desc.Output.Name,
		Artifact: artifactName,
		Files: map[string]string{
			artifactName: encoded,
		},
	}

	manifestPath := filepath.Join(b.opts.OutputDir, b.desc.Output.Name+ReleaseManifestSuffix)

	logger.InfoKV(ctx, "Saving release manifest", "path", manifestPath)

	if err = SaveRelease(manifestPath, release); err != nil {
		return "", err
	}

	return encoded, nil
}

// saveRecord appends the build record; record failures do not fail the build.
func (b *build) saveRecord(ctx context.Context, artifactPath, checksum string) {
	record := buildrec.Record{
		ID:             uuid.NewString(),
		DescriptorPath: b.opts.DescriptorPath,
		ArtifactPath:   artifactPath,
		Name:           b.desc.Output.Name,
		Version:        version.Short(),
		Checksum:       checksum,
		StartedAt:      b.startedAt,
		FinishedAt:     time.Now().UTC(),
	}

	if err := b.records.Append(ctx, record); err != nil {
		logger.Warnf(ctx, "Unable to save build record: %v", err)
		return
	}

	logger.DebugKV(ctx, "Saved build record", "build_id", record.ID)
}

// cleanup removes the build marker.
func (b *build) cleanup(ctx context.Context) {
	marker := filepath.Join(b.opts.OutputDir, MarkerFilename)
	if _, err := os.Stat(marker); err == nil {
		_ = os.Remove(marker)
	}

	logger.Debug(ctx, "The build has finished")
}
