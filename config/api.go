package config

import (
	"slices"
	"strings"
)

// APIConfig controls version negotiation.
type APIConfig struct {
	SupportedVersions []string `env:"SUPPORTED_VERSIONS" envDefault:"v1,v2"`
	DefaultVersion    string   `env:"DEFAULT_VERSION"    envDefault:"v1"`

	// DeprecatedVersions maps a version to its sunset date (YYYY-MM-DD, may be empty),
	// e.g. "v1:2027-01-31".
	DeprecatedVersions map[string]string `env:"DEPRECATED_VERSIONS"`

	// VersionHeader is the explicit version request header.
	VersionHeader string `env:"VERSION_HEADER" envDefault:"X-API-Version"`

	// MediaVendor is the vendor segment of application/vnd.<vendor>.vN+json.
	MediaVendor string `env:"MEDIA_VENDOR" envDefault:"congregate"`
}

// Sanitize normalizes versions and guarantees the default is supported.
func (a *APIConfig) Sanitize() {
	var supported []string
	for _, v := range a.SupportedVersions {
		if n := NormalizeVersion(v); n != "" && !slices.Contains(supported, n) {
			supported = append(supported, n)
		}
	}
	a.DefaultVersion = NormalizeVersion(a.DefaultVersion)
	if a.DefaultVersion == "" {
		a.DefaultVersion = "v1"
	}
	if !slices.Contains(supported, a.DefaultVersion) {
		supported = append([]string{a.DefaultVersion}, supported...)
	}
	a.SupportedVersions = supported

	deprecated := make(map[string]string, len(a.DeprecatedVersions))
	for v, sunset := range a.DeprecatedVersions {
		if n := NormalizeVersion(v); n != "" {
			deprecated[n] = strings.TrimSpace(sunset)
		}
	}
	a.DeprecatedVersions = deprecated

	if strings.TrimSpace(a.VersionHeader) == "" {
		a.VersionHeader = "X-API-Version"
	}
	a.MediaVendor = strings.ToLower(strings.TrimSpace(a.MediaVendor))
	if a.MediaVendor == "" {
		a.MediaVendor = "congregate"
	}
}

// NormalizeVersion lower-cases v and ensures a leading "v" marker: "2" and
// "V2" both become "v2".
func NormalizeVersion(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return ""
	}
	if v[0] >= '0' && v[0] <= '9' {
		return "v" + v
	}
	return v
}

// ValidationConfig controls request validation defaults.
type ValidationConfig struct {
	// StrictSchema makes built-in schemas reject undeclared fields.
	StrictSchema bool `env:"STRICT_SCHEMA" envDefault:"false"`
}
