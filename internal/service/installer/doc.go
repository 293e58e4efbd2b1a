// Package installer applies a built artifact over an installed executable.
// Running copies are terminated first, the artifact is verified against its
// release manifest and then swapped in atomically with a rollback backup.
package installer
