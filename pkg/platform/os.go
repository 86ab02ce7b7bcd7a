// SPDX-License-Identifier: MPL-2.0

package platform

// OS name constants for runtime.GOOS comparisons.
// Centralizes the string literals to avoid scattered magic strings.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)

// IsWindows reports whether goos names the Windows family.
func IsWindows(goos string) bool {
	return goos == Windows
}

// ListDelimiter returns the PATH list separator used on goos.
// It is a string rather than os.PathListSeparator so callers can compute
// values for a platform other than the one they run on (tests, packing).
func ListDelimiter(goos string) string {
	if IsWindows(goos) {
		return ";"
	}
	return ":"
}
