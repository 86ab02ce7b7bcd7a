// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// ActionableError carries the failed operation, the resource involved and
// remediation suggestions. The catalog holds one Markdown page per failure
// class, rendered with glamour when pixienv runs with --verbose.
package issue
