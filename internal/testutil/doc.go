// SPDX-License-Identifier: MPL-2.0

// Package testutil provides test helpers and in-memory fakes for the
// engine's ports: a scripted Executor, a Runner that completes tasks with
// preset exit statuses, prompt and progress fakes, and a fake pixi binary.
package testutil
