// SPDX-License-Identifier: MPL-2.0

// Package shellexport scrapes variable assignments out of the text a shell
// hook prints.
//
// The grammar is deliberately small: a line qualifies only when, after
// trimming, it starts with "export " and contains an "=". The key is the
// text between the token and the first "=", the value is everything after
// it. One matching pair of outer double or single quotes is stripped; no
// escape processing happens inside the value. Everything else is ignored.
package shellexport

import (
	"iter"
	"strings"
)

const exportToken = "export "

type (
	// VariableUpdate is a single key/value pair produced by one parse pass.
	VariableUpdate struct {
		Key   string
		Value string
	}

	// Variables is an ordered mapping of variable name to value. Keys keep
	// the position of their first occurrence; later occurrences overwrite
	// the value in place. The zero value is an empty mapping ready to use.
	Variables struct {
		keys   []string
		values map[string]string
	}
)

// Parse extracts every export assignment from text. It never fails;
// lines that do not match the export grammar are skipped.
func Parse(text string) *Variables {
	vars := &Variables{}
	for line := range strings.Lines(text) {
		key, value, ok := parseLine(line)
		if !ok {
			continue
		}
		vars.Set(key, value)
	}
	return vars
}

// ParseListing extracts assignments from an environment listing such as
// the output of printenv or cmd's set, where lines are bare KEY=VALUE.
// Each line is read as if it were prefixed with "export ", so quoting and
// key rules are exactly those of Parse.
func ParseListing(text string) *Variables {
	vars := &Variables{}
	for line := range strings.Lines(text) {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, exportToken) {
			trimmed = exportToken + trimmed
		}
		key, value, ok := parseLine(trimmed)
		if !ok {
			continue
		}
		vars.Set(key, value)
	}
	return vars
}

func parseLine(line string) (key, value string, ok bool) {
	trimmed := strings.TrimSpace(line)
	rest, found := strings.CutPrefix(trimmed, exportToken)
	if !found {
		return "", "", false
	}
	key, value, found = strings.Cut(rest, "=")
	if !found || key == "" {
		return "", "", false
	}
	return key, unquote(value), true
}

// unquote strips exactly one outer pair of matching quotes.
func unquote(value string) string {
	if len(value) < 2 {
		return value
	}
	first, last := value[0], value[len(value)-1]
	if first == last && (first == '"' || first == '\'') {
		return value[1 : len(value)-1]
	}
	return value
}

// Set assigns value to key, appending key if it has not been seen.
func (v *Variables) Set(key, value string) {
	if v.values == nil {
		v.values = make(map[string]string)
	}
	if _, exists := v.values[key]; !exists {
		v.keys = append(v.keys, key)
	}
	v.values[key] = value
}

// Get returns the value for key and whether it was present.
func (v *Variables) Get(key string) (string, bool) {
	if v == nil || v.values == nil {
		return "", false
	}
	value, ok := v.values[key]
	return value, ok
}

// Len returns the number of distinct keys.
func (v *Variables) Len() int {
	if v == nil {
		return 0
	}
	return len(v.keys)
}

// Keys returns the keys in first-seen order.
func (v *Variables) Keys() []string {
	if v == nil {
		return nil
	}
	out := make([]string, len(v.keys))
	copy(out, v.keys)
	return out
}

// All iterates key/value pairs in first-seen key order.
func (v *Variables) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		if v == nil {
			return
		}
		for _, key := range v.keys {
			if !yield(key, v.values[key]) {
				return
			}
		}
	}
}

// Updates returns the mapping as a slice of VariableUpdate in key order.
func (v *Variables) Updates() []VariableUpdate {
	out := make([]VariableUpdate, 0, v.Len())
	for key, value := range v.All() {
		out = append(out, VariableUpdate{Key: key, Value: value})
	}
	return out
}
