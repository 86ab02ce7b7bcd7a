// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the pixienv CLI commands.
//
// The root command wires the activation engine to a per-workspace state
// database, the pixi executable found on this host, and terminal prompts.
// Every subcommand opens that wiring through App.open and closes it when done.
package cmd
