// Package version holds the build version, overridable via -ldflags at
// build time (e.g. -X github.com/johnlindquist/scriptkit-gpui/internal/version.Version=1.2.3).
package version

var Version = "0.1.0-dev"
