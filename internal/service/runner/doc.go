// Package runner implements the artifact's runtime behavior. The stub
// executable delegates here: it opens itself as a bundle, extracts the
// payload into a per-run directory, executes the runtime hooks in order
// and then replaces its own role with the interpreter running the entry
// script, passing the caller's arguments through unchanged.
package runner
