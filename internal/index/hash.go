package index

import "strings"

var buildVersion string

// SetBuildVersion scopes cached renders to one binary build, so upgrading the
// generator never serves HTML produced by an older renderer.
func SetBuildVersion(version string) {
	buildVersion = strings.TrimSpace(version)
}

func versionedKey(key string) string {
	if buildVersion == "" {
		return key
	}
	return "v=" + buildVersion + ";" + key
}
