// SPDX-License-Identifier: MPL-2.0

// Package platform provides cross-platform compatibility utilities.
//
// It centralizes the GOOS names the rest of the module branches on, the
// path-list delimiter used when editing PATH-like variables for a target
// OS, and the mapping from Go's GOOS/GOARCH pair to the platform labels the
// pixi CLI writes in manifests (linux-64, osx-arm64, win-64, ...).
package platform
