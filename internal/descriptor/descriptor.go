package descriptor

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Descriptor declares the inputs of a single bundle build.
type Descriptor struct {
	// EntryScript is the script whose execution defines the packaged
	// program's behavior.
	EntryScript string `yaml:"entry_script"`
	// Interpreter runs the entry script inside the artifact. When empty,
	// it is taken from the entry script's shebang line at build time.
	Interpreter string `yaml:"interpreter"`
	// SearchPaths are directories probed when resolving hidden imports
	// and runtime hooks.
	SearchPaths []string `yaml:"search_paths"`
	// BundledData lists auxiliary files copied verbatim into the artifact.
	BundledData []DataFile `yaml:"bundled_data"`
	// HiddenImports are extra files to force-include, resolved against
	// SearchPaths.
	HiddenImports []string `yaml:"hidden_imports"`
	// HookPaths are extra directories probed when resolving runtime hooks.
	HookPaths []string `yaml:"hook_paths"`
	// RuntimeHooks are scripts the artifact executes before the entry script.
	RuntimeHooks []string `yaml:"runtime_hooks"`
	// Excludes are glob patterns removing resolved extra files from the
	// payload. They never apply to the entry script or bundled data.
	Excludes []string `yaml:"excludes"`
	// Output describes the produced artifact.
	Output Output `yaml:"output"`
}

// DataFile is a (source, destination) pair for one bundled data file.
type DataFile struct {
	// Source is the path of the file on disk at build time.
	Source string `yaml:"source"`
	// Destination is the path the file is exposed at inside the artifact.
	// Defaults to the source's base name at the artifact root.
	Destination string `yaml:"destination"`
}

// Output describes the artifact the build produces.
type Output struct {
	// Name is the base name of the produced executable.
	Name string `yaml:"name"`
	// Icon is an optional icon resource, embedded on platforms that
	// support it and ignored elsewhere.
	Icon string `yaml:"icon"`
	// VersionResource is an optional YAML version-metadata file, embedded
	// on platforms that support it and ignored elsewhere.
	VersionResource string `yaml:"version_resource"`
	// Console controls whether the artifact attaches a console on launch.
	Console bool `yaml:"console"`
	// StripSymbols runs the host strip tool on the stub before packing.
	StripSymbols bool `yaml:"strip_symbols"`
	// Compress enables lossless compression of the packed payload.
	Compress bool `yaml:"compress"`
}

// Error taxonomy for missing build inputs. All of them are fatal, a build
// either produces its artifact or nothing at all.
var (
	// ErrMissingEntryPoint is returned when the entry script is absent or unreadable.
	ErrMissingEntryPoint = errors.New("entry script is missing")
	// ErrMissingDataFile is returned when a bundled data source does not exist.
	ErrMissingDataFile = errors.New("bundled data file is missing")
	// ErrMissingResource is returned when an icon or version resource does
	// not exist on a platform that embeds such resources.
	ErrMissingResource = errors.New("resource file is missing")

	// errNameRequired is returned when the output name is empty.
	errNameRequired = errors.New("output name must be provided")
	// errNoInterpreter is returned when neither the descriptor nor the
	// entry script's shebang names an interpreter.
	errNoInterpreter = errors.New("interpreter is not set and entry script has no shebang")
)

// UnmarshalYAML decodes the output block with its documented defaults:
// console and compress default to true, strip_symbols to false.
func (o *Output) UnmarshalYAML(value *yaml.Node) error {
	type rawOutput Output

	raw := rawOutput{
		Console:  true,
		Compress: true,
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	*o = Output(raw)

	return nil
}

// Load reads a descriptor from the provided path, applies defaults relative
// to the descriptor's directory and validates it.
func Load(path string) (*Descriptor, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}

	var d Descriptor
	if err := yaml.Unmarshal(contents, &d); err != nil {
		return nil, fmt.Errorf("unmarshal descriptor: %w", err)
	}

	d.relativize(filepath.Dir(path))

	if err := d.Validate(); err != nil {
		return nil, err
	}

	return &d, nil
}

// relativize resolves relative input paths against the descriptor's
// directory so a build works regardless of the invoking cwd.
func (d *Descriptor) relativize(baseDir string) {
	d.EntryScript = joinIfRelative(baseDir, d.EntryScript)
	d.Output.Icon = joinIfRelative(baseDir, d.Output.Icon)
	d.Output.VersionResource = joinIfRelative(baseDir, d.Output.VersionResource)

	for i := range d.SearchPaths {
		d.SearchPaths[i] = joinIfRelative(baseDir, d.SearchPaths[i])
	}

	for i := range d.HookPaths {
		d.HookPaths[i] = joinIfRelative(baseDir, d.HookPaths[i])
	}

	for i := range d.BundledData {
		d.BundledData[i].Source = joinIfRelative(baseDir, d.BundledData[i].Source)
		if d.BundledData[i].Destination == "" {
			d.BundledData[i].Destination = filepath.Base(d.BundledData[i].Source)
		}
	}
}

// Validate checks that every required input exists and is readable.
// "Completed" means the build may start: a descriptor passing Validate can
// only fail later on output errors or unresolved imports.
func (d *Descriptor) Validate() error {
	if d.Output.Name == "" {
		return errNameRequired
	}

	if d.EntryScript == "" {
		return ErrMissingEntryPoint
	}

	if err := checkReadable(d.EntryScript); err != nil {
		return fmt.Errorf("%s: %w", d.EntryScript, ErrMissingEntryPoint)
	}

	for _, data := range d.BundledData {
		if _, err := os.Stat(data.Source); err != nil {
			return fmt.Errorf("%s: %w", data.Source, ErrMissingDataFile)
		}
	}

	return nil
}

// ValidateResources checks the optional icon and version resource inputs.
// The builder calls it only when the target platform embeds resources;
// elsewhere missing resources are not an error.
func (d *Descriptor) ValidateResources() error {
	for _, path := range []string{d.Output.Icon, d.Output.VersionResource} {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("%s: %w", path, ErrMissingResource)
		}
	}

	return nil
}

// ResolveInterpreter returns the interpreter for the entry script,
// reading the shebang line when the descriptor leaves it unset.
func (d *Descriptor) ResolveInterpreter() (string, []string, error) {
	if d.Interpreter != "" {
		parts := strings.Fields(d.Interpreter)
		return parts[0], parts[1:], nil
	}

	file, err := os.Open(filepath.Clean(d.EntryScript))
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", d.EntryScript, ErrMissingEntryPoint)
	}

	defer func() {
		_ = file.Close()
	}()

	line, err := bufio.NewReader(file).ReadString('\n')
	if err != nil && line == "" {
		return "", nil, errNoInterpreter
	}

	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "#!") {
		return "", nil, errNoInterpreter
	}

	parts := strings.Fields(strings.TrimPrefix(line, "#!"))
	if len(parts) == 0 {
		return "", nil, errNoInterpreter
	}

	return parts[0], parts[1:], nil
}

// checkReadable ensures the file exists and can be opened for reading.
func checkReadable(path string) error {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return err
	}

	return file.Close()
}

// joinIfRelative joins path onto baseDir unless path is empty or absolute.
func joinIfRelative(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(baseDir, path)
}
