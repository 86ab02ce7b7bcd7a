// SPDX-License-Identifier: MPL-2.0

package platform

// PixiPlatform returns the pixi platform label for a GOOS/GOARCH pair,
// or an empty string when pixi has no label for the combination.
func PixiPlatform(goos, goarch string) string {
	var prefix string
	switch goos {
	case Linux:
		prefix = "linux"
	case Darwin:
		prefix = "osx"
	case Windows:
		prefix = "win"
	default:
		return ""
	}

	switch goarch {
	case "amd64":
		return prefix + "-64"
	case "arm64":
		if goos == Linux {
			return prefix + "-aarch64"
		}
		return prefix + "-arm64"
	case "386":
		if goos == Darwin {
			return ""
		}
		return prefix + "-32"
	case "ppc64le":
		if goos == Linux {
			return prefix + "-ppc64le"
		}
	}
	return ""
}
