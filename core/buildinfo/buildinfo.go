package buildinfo

// Set via -ldflags at build time:
//
//	-X 'github.com/m3rciful/videoshop/core/buildinfo.Version=v0.3.0'
//	-X 'github.com/m3rciful/videoshop/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/videoshop/core/buildinfo.Date=2026-10-01T12:00:00Z'
var (
	// Version is the release tag of the binary.
	Version = "dev"
	// Commit is the git commit the binary was built from.
	Commit = "local"
	// Date is the RFC3339 build timestamp.
	Date = ""
)
