// Package version provides build-time version information.
//
// Variables are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/rickgao/ticker-relay/internal/version.Version=1.0.0 \
//	                   -X github.com/rickgao/ticker-relay/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/rickgao/ticker-relay/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

// Build-time variables (set via ldflags)
var (
	// Version is the semantic version (e.g., "1.0.0")
	Version = "dev"

	// Commit is the git commit hash (short form)
	Commit = "unknown"

	// BuildTime is the UTC build timestamp (ISO 8601)
	BuildTime = "unknown"
)

// String returns a formatted version string, e.g. "1.0.0 (abc1234) built 2025-01-01T00:00:00Z".
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}

// Info returns the build information as a map suitable for JSON responses.
func Info() map[string]string {
	return map[string]string{
		"version":    Version,
		"commit":     Commit,
		"build_time": BuildTime,
	}
}
