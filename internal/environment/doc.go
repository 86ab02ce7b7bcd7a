// SPDX-License-Identifier: MPL-2.0

// Package environment drives activation of a pixi environment for one
// workspace.
//
// Activation runs strictly in sequence: check the CLI, select an
// environment, persist the selection, run `pixi install` in a visible
// terminal (interactive only), capture `pixi shell-hook`, parse the exports
// and apply them. The persisted selection and the variable collection are
// ports handed to the Manager, never globals.
//
// Concurrent Activate/AutoActivate calls for the same workspace share one
// in-flight run; callers that join receive its result.
package environment
