// Package buildrec implements persistence for build records.
//
// The FileRepository appends and loads records as JSON on disk and exposes a
// Repository interface the builder service depends on. Records are audit
// data: they never feed back into artifact contents, so the determinism of
// builds is unaffected by them.
package buildrec
