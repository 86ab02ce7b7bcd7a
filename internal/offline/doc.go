// SPDX-License-Identifier: MPL-2.0

// Package offline packs a workspace environment into a portable archive with
// pixi-pack and loads such an archive back with pixi-unpack.
//
// Both archive steps run as tracked tasks and are judged by their exit
// status. After unpacking, the activation script is sourced in a capture
// shell and the printed variable listing is applied exactly like a
// shell-hook capture.
package offline
