// SPDX-License-Identifier: MPL-2.0

// Package state persists per-workspace engine state in a SQLite database.
//
// Two surfaces are stored, both keyed by the absolute workspace root:
//   - a key/value Memento holding the activation selection, where a missing
//     key is distinct from an empty value;
//   - the variable-injection collection: the variables activation applied,
//     in application order, so new shells and later runs can replay them.
//
// The database lives next to the configuration (see config.StateFilePath)
// and is opened with the pure-Go modernc.org/sqlite driver.
package state
