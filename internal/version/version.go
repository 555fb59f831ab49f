// Package version carries the build version string shared by the CLI and
// the RPC surface.
package version

// Version is the semantic version reported by server_info and the CLI.
// Overridden at release time via -ldflags.
var Version = "0.1.0-dev"
