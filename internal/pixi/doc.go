// SPDX-License-Identifier: MPL-2.0

// Package pixi wraps the pixi CLI: locating the binary and issuing the
// info, shell-hook, task list, list, add and init queries whose output the
// engine consumes.
//
// Capture queries run through a runtime.Executor with POSIX-style command
// lines. Lines meant for the user's terminal (install, task runs) are built
// with the host dialect from cmdline.DialectFor.
package pixi
