// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small helpers shared by the router, the store and the
// command line.
//
// String helpers are rune and display-width aware so Portuguese accents and
// wide characters are never split:
//
//	excerpt := util.TruncateRunes(message, 120)
//	cell := util.TruncateWidth(title, 30)
//
// AtomicWriteFile writes configuration files through a synced temp file and
// a rename, so a crash leaves either the old file or the new one.
package util
