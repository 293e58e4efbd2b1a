// Package bundle implements the artifact format: a runtime stub executable
// with an appended payload and a fixed-size trailing footer.
//
// The payload is a tar archive whose first entry is a JSON manifest
// describing every packed file with its size, mode and SHA-512 checksum.
// Payload metadata is normalized (sorted entries, zero timestamps, fixed
// ownership) so identical inputs always produce identical artifacts.
// When compression is on, the archive is wrapped in a zstd frame; unpacking
// reproduces byte-identical contents either way.
//
// The footer sits at the very end of the artifact so a reader can locate the
// payload without knowing the stub's size.
package bundle
