package utils

import (
	"fmt"
	"runtime/debug"
)

// Version is overridden at build time with -ldflags "-X room-bridge/backend/pkg/utils.Version=...".
//
//nolint:gochecknoglobals // Set by the linker
var Version = "0.1.0"

const shortCommitLen = 7

// GetVersionShort returns "v<version> (<commit>)".
func GetVersionShort() string {
	commit, _, modified := getVCSInfo()

	return fmt.Sprintf("v%s%s (%s)", Version, dirtySuffix(modified), commit)
}

// GetBuildVersion returns "v<version> (<commit>) built at <time>".
func GetBuildVersion() string {
	commit, buildTime, modified := getVCSInfo()

	return fmt.Sprintf("v%s%s (%s) built at %s", Version, dirtySuffix(modified), commit, buildTime)
}

// GetBuildInfo returns version and VCS details as a flat map.
func GetBuildInfo() map[string]string {
	commit, buildTime, modified := getVCSInfo()

	info := map[string]string{
		"version":      Version,
		"commit":       commit,
		"build_time":   buildTime,
		"vcs_modified": modified,
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		info["go_version"] = bi.GoVersion
	}

	return info
}

func getVCSInfo() (commit, buildTime, modified string) {
	commit, buildTime, modified = "unknown", "unknown", "false"

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return commit, buildTime, modified
	}

	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			commit = s.Value
			if len(commit) > shortCommitLen {
				commit = commit[:shortCommitLen]
			}
		case "vcs.time":
			buildTime = s.Value
		case "vcs.modified":
			modified = s.Value
		}
	}

	return commit, buildTime, modified
}

func dirtySuffix(modified string) string {
	if modified == "true" {
		return "-dirty"
	}

	return ""
}
