// Package builder implements the build operation: it consumes a bundle
// descriptor and produces exactly one self-contained artifact for the host
// platform, plus a release manifest describing it.
//
// A build is a single synchronous step. Any missing required input is fatal
// and leaves no partial artifact behind; the output is written to a
// temporary file and renamed into place only on success.
package builder
