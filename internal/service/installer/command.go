package installer

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	goupdate "github.com/doitdistributed/go-update"
	"github.com/mitchellh/go-ps"

	"github.com/oshokin/script-bundler/internal/bundle"
	"github.com/oshokin/script-bundler/internal/logger"
	"github.com/oshokin/script-bundler/internal/service/builder"
)

var (
	// errNoChecksum is returned when the release manifest carries no entry
	// for the artifact being installed.
	errNoChecksum = errors.New("checksum missing for artifact")
	// errUnsupportedOS is returned when relaunch is requested on a platform
	// without a known launch convention.
	errUnsupportedOS = errors.New("os not supported")
)

// Options contains inputs for the install entry point.
type Options struct {
	// ArtifactPath is the new artifact to install.
	ArtifactPath string
	// TargetPath is the installed executable to replace.
	TargetPath string
	// ReleasePath is the release manifest the artifact is verified against.
	// Defaults to the manifest next to the artifact.
	ReleasePath string
	// Relaunch starts the installed executable after a successful swap.
	Relaunch bool
}

// install holds the state of a single install execution.
type install struct {
	// opts are the caller's inputs after defaulting.
	opts *Options
	// checksum is the raw SHA-512 the release manifest records for the artifact.
	checksum []byte
}

// Run verifies and installs the artifact over the target executable.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "bundle-install")

	i, err := newInstall(opts)
	if err != nil {
		return err
	}

	if err = i.run(ctx); err != nil {
		return fmt.Errorf("install failed: %w", err)
	}

	logger.InfoKV(ctx, "Installed", "target", opts.TargetPath)

	return nil
}

// newInstall loads the release manifest and resolves the expected checksum.
func newInstall(opts *Options) (*install, error) {
	if opts.ReleasePath == "" {
		name := strings.TrimSuffix(filepath.Base(opts.ArtifactPath), ".exe")
		opts.ReleasePath = filepath.Join(filepath.Dir(opts.ArtifactPath),
			name+builder.ReleaseManifestSuffix)
	}

	release, err := builder.LoadRelease(opts.ReleasePath)
	if err != nil {
		return nil, err
	}

	recorded, ok := release.Files[filepath.Base(opts.ArtifactPath)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", filepath.Base(opts.ArtifactPath), errNoChecksum)
	}

	checksum, err := base64.StdEncoding.DecodeString(recorded)
	if err != nil {
		return nil, fmt.Errorf("decode recorded checksum: %w", err)
	}

	return &install{
		opts:     opts,
		checksum: checksum,
	}, nil
}

// run executes the install workflow: stop, verify, swap, relaunch.
func (i *install) run(ctx context.Context) error {
	logger.InfoKV(ctx, "Terminating running copies",
		"executable", filepath.Base(i.opts.TargetPath))

	if err := terminateProcessByName(filepath.Base(i.opts.TargetPath)); err != nil {
		return fmt.Errorf("terminate running copies: %w", err)
	}

	data, err := os.ReadFile(filepath.Clean(i.opts.ArtifactPath))
	if err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}

	logger.Debug(ctx, "Applying update")

	options := goupdate.Options{
		TargetPath: i.opts.TargetPath,
		TargetMode: builder.DefaultFileMode,
		Checksum:   i.checksum,
		Hash:       bundle.DefaultChecksumFunction,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return err
	}

	oldFileName := i.opts.TargetPath + ".old"
	if _, err = os.Stat(oldFileName); err == nil {
		_ = os.Remove(oldFileName)
	}

	if !i.opts.Relaunch {
		return nil
	}

	logger.InfoKV(ctx, "Starting installed executable", "path", i.opts.TargetPath)

	return startExecutable(ctx, i.opts.TargetPath)
}

// terminateProcessByName kills every process whose executable name matches,
// skipping the installer itself.
func terminateProcessByName(processName string) error {
	processList, err := ps.Processes()
	if err != nil {
		return err
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() != processName {
			continue
		}

		var runningProcess *os.Process

		runningProcess, err = os.FindProcess(process.Pid())
		if err != nil {
			return err
		}

		if err = runningProcess.Kill(); err != nil {
			return err
		}
	}

	return nil
}

// startExecutable launches the executable detached, per platform convention.
func startExecutable(ctx context.Context, executable string) error {
	osLC := strings.ToLower(runtime.GOOS)
	switch {
	case strings.Contains(osLC, "linux") || strings.Contains(osLC, "darwin"):
		return exec.CommandContext(ctx, executable).Start()
	case strings.Contains(osLC, "windows"):
		return exec.CommandContext(ctx, "cmd.exe", "/C", "start", executable).Start()
	default:
		return fmt.Errorf("%s OS is not supported: %w", runtime.GOOS, errUnsupportedOS)
	}
}
