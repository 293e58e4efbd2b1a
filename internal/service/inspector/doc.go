// Package inspector implements read-only operations over finished
// artifacts: printing the manifest, unpacking the payload without
// executing it, and verifying checksums and release signatures.
package inspector
