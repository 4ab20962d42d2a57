// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports the Spool build version.
package version

import "runtime/debug"

// Version is the release version, overridden at build time with
// -ldflags "-X github.com/spoolworks/spool/lib/version.Version=...".
var Version = "0.3.0-dev"

// String returns the version plus the VCS revision when the binary was
// built from a git checkout.
func String() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Version
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && len(setting.Value) >= 12 {
			return Version + "+" + setting.Value[:12]
		}
	}
	return Version
}
