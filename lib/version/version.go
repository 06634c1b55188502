// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set with -ldflags -X by release builds.
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	GitDirty  = "false"
	BuildTime = "unknown"
)

// Info is the one-line form printed by "grackle version".
func Info() string {
	revision, dirty := commit()
	if dirty {
		revision += "+dirty"
	}
	return fmt.Sprintf("grackle %s (%s, built %s)", Version, revision, BuildTime)
}

// Full adds the toolchain and target platform to [Info]. The sandbox
// backend differs per platform, so bug reports need both.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// commit prefers the ldflags values and falls back to the VCS stamp
// that "go build" embeds when run inside a checkout.
func commit() (string, bool) {
	if GitCommit != "unknown" {
		return GitCommit, GitDirty == "true"
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return GitCommit, false
	}
	return vcsStamp(info.Settings)
}

func vcsStamp(settings []debug.BuildSetting) (string, bool) {
	revision, dirty := "unknown", false
	for _, setting := range settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
			if len(revision) > 12 {
				revision = revision[:12]
			}
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return revision, dirty
}
