// Package version carries build identification injected at link time.
package version

// Set via -ldflags "-X github.com/lakeops/metalake/internal/version.Version=..."
var (
	Version = "dev"
	GitSHA  = "unknown"
)

// String returns the human-readable build identifier.
func String() string {
	return Version + " (" + GitSHA + ")"
}
