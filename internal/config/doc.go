// SPDX-License-Identifier: MPL-2.0

// Package config handles pixienv configuration using Viper with CUE as the file format.
//
// A config file is validated against the embedded #Config schema and merged over
// the defaults. PIXIENV_* environment variables override both, and a workspace-local
// .pixienv/config.cue takes precedence over the user config directory.
package config
