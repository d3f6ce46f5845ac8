// Package version holds the build-time version string printed by
// -v/--version.
package version

// Version is overridden at build time via -ldflags "-X ...version.Version=...".
var Version = "dev"
