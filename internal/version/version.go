// Package version holds effectlint build information.
package version

import (
	"fmt"
	"runtime/debug"
)

// Overridden at build time:
//
//	go build -ldflags "-X effectlint/internal/version.Version=0.3.0 -X effectlint/internal/version.Commit=$(git rev-parse HEAD)"
var (
	Version   = "0.1.0-dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// commit returns Commit, falling back to the VCS revision the toolchain
// stamped into the binary.
func commit() string {
	if Commit != "unknown" {
		return Commit
	}
	if info, ok := readBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return s.Value
			}
		}
	}
	return Commit
}

// Info returns the version with a short commit suffix when one is known.
func Info() string {
	if c := commit(); c != "unknown" && len(c) > 7 {
		return Version + " (" + c[:7] + ")"
	}
	return Version
}

// Full returns the multi-line output of `effectlint version`.
func Full() string {
	return fmt.Sprintf("effectlint %s\ncommit: %s\nbuilt: %s", Version, commit(), BuildDate)
}
