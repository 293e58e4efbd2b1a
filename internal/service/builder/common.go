package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/script-bundler/internal/logger"
)

const (
	// MarkerFilename marks that a build is running in the output directory
	// to avoid parallel builds clobbering each other's artifacts.
	MarkerFilename = "script-bundler-build-marker.bin"

	// RecordsFilename stores build records next to the artifacts.
	RecordsFilename = "script-bundler-builds.json"

	// ReleaseManifestSuffix names the release manifest written next to the artifact.
	ReleaseManifestSuffix = "-release.yaml"

	// DefaultOutputDir receives artifacts when no output directory is given.
	DefaultOutputDir = "dist"

	// DefaultFileMode is used for produced artifacts.
	DefaultFileMode os.FileMode = 0o755

	// stubBaseName is the runtime stub executable's base name.
	stubBaseName = "bundle-stub"

	// markerLifetime is the period after which a stale build marker is ignored.
	markerLifetime = 30 * time.Second
)

// ErrStubNotFound is returned when no runtime stub executable can be located.
var ErrStubNotFound = errors.New("runtime stub executable not found")

// Release is the manifest published alongside an artifact. File checksums
// are base64-encoded SHA-512, matching the bundle payload format.
type Release struct {
	// Version is the bundler version that produced the artifact.
	Version string `yaml:"version"`
	// Name is the bundle's base name.
	Name string `yaml:"name"`
	// Artifact is the produced executable's file name.
	Artifact string `yaml:"artifact"`
	// Files maps file names to their base64-encoded checksums.
	Files map[string]string `yaml:"files"`
}

// SaveRelease writes the release manifest to the provided path.
func SaveRelease(path string, release *Release) error {
	contents, err := yaml.Marshal(release)
	if err != nil {
		return fmt.Errorf("marshal release manifest: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), contents, 0o644); err != nil {
		return fmt.Errorf("write release manifest: %w", err)
	}

	return nil
}

// LoadRelease reads a release manifest from the provided path.
func LoadRelease(path string) (*Release, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read release manifest: %w", err)
	}

	var release Release
	if err = yaml.Unmarshal(contents, &release); err != nil {
		return nil, fmt.Errorf("unmarshal release manifest: %w", err)
	}

	return &release, nil
}

// IsBuildRunningNow checks presence of a marker file in the output directory
// and attempts recovery if it looks stale.
func IsBuildRunningNow(ctx context.Context, outputDir string) bool {
	marker := filepath.Join(outputDir, MarkerFilename)

	logger.Debug(ctx, "Checking for the presence of a build marker")

	fileInfo, err := os.Stat(marker)
	if err == nil {
		if time.Since(fileInfo.ModTime()) <= markerLifetime {
			return true
		}

		logger.Info(ctx, "The build marker is too old, attempting cleanup")

		if err = terminateProcessByName(bundlerExecutable()); err != nil {
			return true
		}

		if err = os.Remove(marker); err != nil {
			return true
		}

		return false
	}

	if errors.Is(err, os.ErrNotExist) {
		return false
	}

	logger.Infof(ctx, "Unable to read build marker: %v", err)

	return false
}

// terminateProcessByName tries to kill processes with the provided executable name.
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

// findStub locates the runtime stub, preferring explicit paths over the
// directory of the running bundler executable.
func findStub(candidates ...string) (string, error) {
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}

		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	executable, err := os.Executable()
	if err == nil {
		sibling := filepath.Join(filepath.Dir(executable), stubBaseName+executableExtension())
		if info, statErr := os.Stat(sibling); statErr == nil && !info.IsDir() {
			return sibling, nil
		}
	}

	return "", ErrStubNotFound
}

// targetEmbedsResources reports whether the produced artifact supports
// embedded icon/version resources. Artifacts are built for the host.
func targetEmbedsResources() bool {
	return runtime.GOOS == "windows"
}

// executableExtension returns ".exe" on Windows and "" elsewhere.
func executableExtension() string {
	if strings.Contains(strings.ToLower(runtime.GOOS), "windows") {
		return ".exe"
	}

	return ""
}

func bundlerExecutable() string {
	return "script-bundler" + executableExtension()
}

// artifactFileName returns the produced executable's file name for the host.
func artifactFileName(name string) string {
	return name + executableExtension()
}
