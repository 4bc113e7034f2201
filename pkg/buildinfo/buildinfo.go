// Package buildinfo carries the version stamps injected by the linker
// at release time.
package buildinfo

import (
	"fmt"
)

var (
	// Version is the release number for this build
	Version = "dev"

	// Commit is the specific git hash
	Commit = "UNKNOWN"

	// BuildDate is the build timestamp
	BuildDate = "UNKNOWN"
)

// Summary renders all the stamps on a single line for logs and
// status reports.
func Summary() string {
	return fmt.Sprintf("rtbot %s (%s, built %s)", Version, Commit, BuildDate)
}
