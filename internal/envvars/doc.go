// SPDX-License-Identifier: MPL-2.0

// Package envvars applies captured environment variables to the persistent
// variable-injection surface and to the live process environment.
package envvars
