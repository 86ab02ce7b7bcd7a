// SPDX-License-Identifier: MPL-2.0

// Package runtime runs pixi command lines on the host.
//
// Two surfaces are provided:
//   - Executor captures the output of short, non-interactive invocations
//     (info --json, shell-hook, task list --json) run through the capture
//     shell (sh -c on POSIX, cmd /C on Windows).
//   - Runner starts long-running, user-observable executions (install,
//     pack, unpack, tasks). TaskRunner streams plain output; TerminalRunner
//     attaches a pseudo-terminal so tools keep their colors and progress bars.
//
// Runner completion is reported as an EndEvent on a Bus, keyed by the
// execution's ID. Await turns that subscription into a blocking wait that the
// caller bounds with its context. An execution that ends without an exit code
// (killed by a signal, terminal closed) reports an unknown ExitStatus.
package runtime
