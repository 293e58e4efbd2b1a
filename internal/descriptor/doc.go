// Package descriptor defines the bundle descriptor: the YAML document that
// declares how one entry script plus auxiliary data files become a single
// self-contained executable.
//
// A descriptor is read once per build and carries no runtime state. Load
// applies defaults and validates that every required input exists before the
// build starts, so a broken descriptor never produces a partial artifact.
package descriptor
