// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// Set with -ldflags -X. Builds without ldflags (go install, go run)
// fall back to the VCS stamps in the embedded build info.
var (
	GitCommit = "unknown"
	GitDirty  = "false"
	BuildTime = "unknown"
	Version   = "0.1.0-dev"
)

type stamp struct {
	commit string
	dirty  bool
	time   string
}

var (
	resolveOnce sync.Once
	resolved    stamp
)

func current() stamp {
	resolveOnce.Do(func() {
		info, _ := debug.ReadBuildInfo()
		resolved = resolve(GitCommit, GitDirty, BuildTime, info)
	})
	return resolved
}

// resolve prefers linker-injected values and fills whatever is still
// "unknown" from the vcs.* build settings.
func resolve(commit, dirty, built string, info *debug.BuildInfo) stamp {
	result := stamp{commit: commit, dirty: dirty == "true", time: built}
	if info == nil || commit != "unknown" {
		return result
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			result.commit = setting.Value
			if len(result.commit) > 12 {
				result.commit = result.commit[:12]
			}
		case "vcs.modified":
			result.dirty = setting.Value == "true"
		case "vcs.time":
			if built == "unknown" {
				result.time = setting.Value
			}
		}
	}
	return result
}

// Commit returns the build's git revision, or "unknown".
func Commit() string {
	return current().commit
}

// Time returns the build or commit timestamp, or "unknown".
func Time() string {
	return current().time
}

// Info returns "version (commit[-dirty], time)".
func Info() string {
	s := current()
	dirty := ""
	if s.dirty {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, s.commit, dirty, s.time)
}

// Full returns Info plus the Go toolchain and platform.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short returns just the version number.
func Short() string {
	return Version
}

// UserAgent returns the User-Agent the API client sends by default.
func UserAgent() string {
	return fmt.Sprintf("zulip-go/%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}
