// Package publisher uploads finished artifacts, their release manifests
// and detached signatures to S3-compatible object storage, keyed by
// bundle name and version so every release stays addressable.
package publisher
