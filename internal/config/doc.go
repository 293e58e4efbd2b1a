// Package config defines tool-level settings shared by the bundler binaries
// and provides helpers to load, validate and save them in YAML format.
//
// The Config type holds the publish endpoint and credentials, the runtime
// stub override and the default log level. Bundle descriptors are a separate
// concern and live in the descriptor package.
package config
