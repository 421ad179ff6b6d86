package qrlogin

import "regexp"

// The login page references its static assets with the build version as a
// "v" query parameter; the first occurrence is the version token every
// subsequent step must echo back.
var versionPattern = regexp.MustCompile(`[?&]v=(\d+)`)

// extractVersion pulls the build-version token out of the login page HTML.
func extractVersion(html string) (string, *LoginError) {
	m := versionPattern.FindStringSubmatch(html)
	if m == nil {
		return "", newStructuralError("version token not found in login page")
	}
	return m[1], nil
}
