// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package buildinfo

import (
	"fmt"
	"runtime"
)

// Set via ldflags: -X github.com/torrentcompanion/companion/internal/buildinfo.Version=v1.2.3
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// UserAgent is sent with every outbound backend request.
var UserAgent = fmt.Sprintf("companion/%s (%s; %s)", Version, runtime.GOOS, runtime.GOARCH)
