// Package version holds the build version, set with
// -ldflags "-X github.com/dshills/ticketgate/internal/version.Version=...".
package version

// Version is the ticketgate release.
var Version = "0.1.0"
