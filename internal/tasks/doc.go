// SPDX-License-Identifier: MPL-2.0

// Package tasks turns pixi's environment → feature → task graph into a flat
// list of runnable tasks.
//
// A task name may be declared by several environments. Resolution is per
// name, in priority order:
//
//  1. a declaration in the "default" environment wins and runs without -e,
//     whatever environment is currently active;
//  2. a name declared by exactly one environment is shown unsuffixed;
//  3. otherwise every declaring environment gets its own entry, shown as
//     "name (env)" and run with that environment's -e flag.
//
// Names starting with "_" are hidden, and environments matching any ignore
// pattern are dropped before resolution.
package tasks
