// Package version carries build metadata stamped at link time
package version

// BuildInfo holds version information about a binary
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Info returns the build information for the named binary.
// Set via -ldflags "-X 'sarbatch/internal/core/version.version=v0.1.0'
// -X 'sarbatch/internal/core/version.commit=abcd' -X 'sarbatch/internal/core/version.date=2026-10-01'"
func Info(service string) BuildInfo {
	return BuildInfo{
		Service: service,
		Version: version,
		Commit:  commit,
		Date:    date,
	}
}

// Tag is the short version string used for client info and report headers
func Tag() string {
	if commit == "none" {
		return version
	}
	return version + "+" + commit
}

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)
