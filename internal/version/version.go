// Package version holds build metadata injected via -ldflags.
package version

var (
	// Version is the release tag, or "dev" for local builds.
	Version = "dev"
	// Commit is the short git commit hash.
	Commit = "dev"
	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)
