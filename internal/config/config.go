package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds settings shared by the bundler binaries.
type Config struct {
	// Publish describes the object storage the publish command uploads to.
	Publish PublishConfig `yaml:"publish"`
	// StubPath overrides the location of the runtime stub executable.
	// When empty, the stub is looked up next to the bundler executable.
	StubPath string `yaml:"stub_path"`
	// LogLevel is the default logging level (debug, info, warn, error, fatal).
	LogLevel string `yaml:"log_level"`
}

// PublishConfig holds S3-compatible storage settings for publishing artifacts.
type PublishConfig struct {
	// Endpoint is the storage host:port, without scheme.
	Endpoint string `yaml:"endpoint"`
	// AccessKey authenticates uploads.
	AccessKey string `yaml:"access_key"`
	// SecretKey authenticates uploads. Prefer the SB_SECRET_KEY environment
	// variable over storing it in the file.
	SecretKey string `yaml:"secret_key"`
	// Bucket is the destination bucket for artifacts and manifests.
	Bucket string `yaml:"bucket"`
	// Region is the bucket region, optional for most deployments.
	Region string `yaml:"region"`
	// Prefix is prepended to every uploaded object key.
	Prefix string `yaml:"prefix"`
	// UseSSL enables TLS for the storage connection.
	UseSSL bool `yaml:"use_ssl"`
}

const (
	// DefaultConfigFilename is the default filename for bundler settings.
	DefaultConfigFilename = "script-bundler-settings.yaml"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// secretKeyEnv names the environment variable consulted for the
	// storage secret when the file leaves it empty.
	secretKeyEnv = "SB_SECRET_KEY"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errEndpointRequired is returned when publishing is configured without an endpoint.
	errEndpointRequired = errors.New("publish endpoint must be provided")
	// errBucketRequired is returned when publishing is configured without a bucket.
	errBucketRequired = errors.New("publish bucket must be provided")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if cfg.Publish.SecretKey == "" {
		cfg.Publish.SecretKey = os.Getenv(secretKeyEnv)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadOrDefault reads configuration from the provided path, returning an
// empty configuration when the file does not exist. Commands that work
// without settings (build, inspect) use this instead of Load.
func LoadOrDefault(path string) (*Config, error) {
	lookup := path
	if lookup == "" {
		lookup = DefaultConfigFilename
	}

	if _, err := os.Stat(lookup); errors.Is(err, os.ErrNotExist) {
		return &Config{}, nil
	}

	return Load(path)
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file may contain credentials.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and formatting.
// Publish settings are only validated when any of them is set, because local
// builds need no storage at all.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	p := cfg.Publish
	if p.Endpoint == "" && p.Bucket == "" && p.AccessKey == "" {
		return nil
	}

	if p.Endpoint == "" {
		return errEndpointRequired
	}

	if p.Bucket == "" {
		return errBucketRequired
	}

	// Endpoint is host:port; parsing it as a URL authority catches stray schemes.
	if u, err := url.Parse("https://" + p.Endpoint); err != nil || u.Host != p.Endpoint {
		return fmt.Errorf("invalid publish endpoint %q", p.Endpoint)
	}

	return nil
}
