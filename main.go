// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// c4route routes agency requests to a specialist agent, decides which
// evidence that agent may see and retrieves it.
package main

import (
	"runtime/debug"

	"github.com/Andre-cardia/c4marketing-sub000/internal/cli"
)

// Set via ldflags:
// go build -ldflags "-X main.version=0.1.0 -X main.commit=abc1234 -X main.date=2025-03-10"
var (
	version = "0.1.0"
	commit  = "none"
	date    = "unknown"
)

func init() {
	if commit != "none" {
		return
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				commit = s.Value[:7]
				break
			}
		}
	}
}

func main() {
	cli.Execute(cli.BuildInfo{Version: version, Commit: commit, Date: date})
}
