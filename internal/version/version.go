// Package version provides version and build information for the binary.
package version

import (
	"fmt"
	"runtime/debug"
)

// Linker-injected variables. Set via:
//
//	go build -ldflags "-X github.com/christoph-ui/lakecore/internal/version.gitCommit=VALUE"
var (
	semver    = "0.1.0"
	gitCommit string
	buildDate string
)

// Info represents version and build information.
type Info struct {
	Version   string
	GitCommit string
	BuildDate string
}

// String formats Info for human-readable display.
func (i Info) String() string {
	return fmt.Sprintf("Version:    %s\nGit Commit: %s\nBuild Date: %s",
		i.Version, i.GitCommit, i.BuildDate)
}

// Get returns the populated Info struct.
func Get() Info {
	return Info{
		Version:   semver,
		GitCommit: commit(),
		BuildDate: date(),
	}
}

// commit prefers the linker flag, then build info, then "unknown".
func commit() string {
	if gitCommit != "" {
		return gitCommit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				rev := setting.Value
				if len(rev) > 12 {
					rev = rev[:12]
				}
				return rev
			}
		}
	}
	return "unknown"
}

func date() string {
	if buildDate != "" {
		return buildDate
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.time" {
				return setting.Value
			}
		}
	}
	return "unknown"
}
