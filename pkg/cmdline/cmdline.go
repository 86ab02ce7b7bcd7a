// SPDX-License-Identifier: MPL-2.0

// Package cmdline builds command lines for the pixi CLI that a shell or task
// runner executes directly.
//
// Lines are never wrapped in echo/eval or a nested "sh -c" string: the
// binary path is always double-quoted verbatim so paths containing
// whitespace survive, and the only per-shell differences are captured as
// data in a Dialect. A Builder is constructed once with the Dialect of the
// shell that will run its lines.
package cmdline

import (
	"strings"

	"github.com/pixienv/pixienv/pkg/platform"
)

// EnvFlag is the pixi flag that selects a named environment.
const EnvFlag = "-e"

type (
	// Dialect describes how a family of shells must be addressed.
	Dialect struct {
		// Name identifies the dialect in logs.
		Name string
		// CallOperator prefixes the line so a quoted path is invoked as a
		// command rather than evaluated as a string literal.
		CallOperator string
		// QuoteMark is the text written for each double quote around a
		// quoted token.
		QuoteMark string
	}

	// Builder renders command lines for a single Dialect.
	Builder struct {
		dialect Dialect
	}
)

var (
	// POSIX covers sh, bash, zsh and cmd.exe capture lines: bare quotes, no
	// call operator.
	POSIX = Dialect{Name: "posix", QuoteMark: `"`}

	// PowerShell requires the call operator to run a quoted path, and the
	// quotes travel escaped so they survive the -Command hand-off.
	PowerShell = Dialect{Name: "powershell", CallOperator: "& ", QuoteMark: `\"`}
)

// DialectFor returns the Dialect used by task and terminal runners on goos.
func DialectFor(goos string) Dialect {
	if platform.IsWindows(goos) {
		return PowerShell
	}
	return POSIX
}

// New creates a Builder for dialect.
func New(dialect Dialect) Builder {
	return Builder{dialect: dialect}
}

// Dialect returns the dialect the Builder renders for.
func (b Builder) Dialect() Dialect {
	return b.dialect
}

// Build renders `"<binary>" <subcommand>` and, when env is not empty,
// appends ` -e <env>`. Empty inputs still produce a well-formed line.
func (b Builder) Build(binary, subcommand, env string) string {
	var sb strings.Builder
	sb.WriteString(b.dialect.CallOperator)
	sb.WriteString(b.Quote(binary))
	if subcommand != "" {
		sb.WriteByte(' ')
		sb.WriteString(subcommand)
	}
	if env != "" {
		sb.WriteByte(' ')
		sb.WriteString(EnvFlag)
		sb.WriteByte(' ')
		sb.WriteString(b.QuoteIfNeeded(env))
	}
	return sb.String()
}

// Quote wraps s in the dialect's quote marks without altering s.
func (b Builder) Quote(s string) string {
	return b.dialect.QuoteMark + s + b.dialect.QuoteMark
}

// QuoteIfNeeded quotes s only when it contains whitespace.
func (b Builder) QuoteIfNeeded(s string) string {
	if strings.ContainsAny(s, " \t") {
		return b.Quote(s)
	}
	return s
}
