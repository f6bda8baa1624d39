package httpx

import (
	"fmt"
	"net/http"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/target/congregate-api/config"
	apperrors "github.com/target/congregate-api/internal/errors"
)

// VersionSource records where a request's API version came from.
type VersionSource string

const (
	VersionFromAccept  VersionSource = "accept"
	VersionFromHeader  VersionSource = "header"
	VersionFromQuery   VersionSource = "query"
	VersionFromPath    VersionSource = "path"
	VersionFromDefault VersionSource = "default"
)

// APIVersion is the resolved version of a request.
type APIVersion struct {
	Name       string
	Source     VersionSource
	Deprecated bool
	// Sunset is zero when no date is configured.
	Sunset time.Time
}

var pathVersion = regexp.MustCompile(`^/api/(v[0-9][^/]*)(?:/|$)`)

// VersionResolver selects the API version of a request.
type VersionResolver struct {
	cfg         config.APIConfig
	header      string
	acceptMedia *regexp.Regexp
	sunsets     map[string]time.Time
}

// NewVersionResolver builds a resolver from sanitized API configuration.
func NewVersionResolver(cfg config.APIConfig) *VersionResolver {
	header := cfg.VersionHeader
	if header == "" {
		header = "X-API-Version"
	}
	vendor := cfg.MediaVendor
	if vendor == "" {
		vendor = "congregate"
	}
	sunsets := make(map[string]time.Time, len(cfg.DeprecatedVersions))
	for v, date := range cfg.DeprecatedVersions {
		if t, err := time.Parse(time.DateOnly, date); err == nil {
			sunsets[config.NormalizeVersion(v)] = t
		}
	}
	return &VersionResolver{
		cfg:         cfg,
		header:      header,
		acceptMedia: regexp.MustCompile(`(?i)^application/vnd\.` + regexp.QuoteMeta(vendor) + `\.([^+]+)\+json$`),
		sunsets:     sunsets,
	}
}

// Resolve picks the version in precedence order: Accept media type, version
// header, version query parameter, path prefix, configured default.
func (v *VersionResolver) Resolve(r *http.Request) (APIVersion, error) {
	name, source := v.requested(r)
	name = config.NormalizeVersion(name)
	if !slices.Contains(v.cfg.SupportedVersions, name) {
		return APIVersion{}, apperrors.BadRequest(apperrors.ErrCodeUnsupportedVersion,
			fmt.Sprintf("API version %q is not supported", name)).
			WithDetails(map[string]any{
				"requested": name,
				"supported": slices.Clone(v.cfg.SupportedVersions),
			})
	}
	out := APIVersion{Name: name, Source: source}
	if _, ok := v.cfg.DeprecatedVersions[name]; ok {
		out.Deprecated = true
		out.Sunset = v.sunsets[name]
	}
	return out, nil
}

func (v *VersionResolver) requested(r *http.Request) (string, VersionSource) {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		media, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if m := v.acceptMedia.FindStringSubmatch(strings.TrimSpace(media)); m != nil {
			return m[1], VersionFromAccept
		}
	}
	if h := strings.TrimSpace(r.Header.Get(v.header)); h != "" {
		return h, VersionFromHeader
	}
	q := r.URL.Query()
	for _, key := range []string{"version", "v"} {
		if val := strings.TrimSpace(q.Get(key)); val != "" {
			return val, VersionFromQuery
		}
	}
	if pv := r.PathValue("version"); pv != "" {
		return pv, VersionFromPath
	}
	if m := pathVersion.FindStringSubmatch(r.URL.Path); m != nil {
		return m[1], VersionFromPath
	}
	return v.cfg.DefaultVersion, VersionFromDefault
}

// Stage returns the version stage for a route serving only allowed versions.
// An empty allowed list serves every supported version.
func (v *VersionResolver) Stage(allowed []string) Stage {
	normalized := make([]string, 0, len(allowed))
	for _, a := range allowed {
		normalized = append(normalized, config.NormalizeVersion(a))
	}
	return StageFunc("version", func(rc *RequestContext) Result {
		h := rc.Writer.Header()
		ver, err := v.Resolve(rc.Request)
		if err != nil {
			h.Set(v.header, v.cfg.DefaultVersion)
			return Fail(err)
		}
		rc.Version = ver
		h.Set(v.header, ver.Name)

		if ver.Deprecated {
			dep := &Deprecation{
				Version: ver.Name,
				Message: fmt.Sprintf("API version %s is deprecated", ver.Name),
			}
			h.Set("Deprecation", "true")
			if !ver.Sunset.IsZero() {
				h.Set("Sunset", ver.Sunset.UTC().Format(http.TimeFormat))
				dep.Sunset = ver.Sunset.Format(time.DateOnly)
				dep.Message += fmt.Sprintf(" and will be removed on %s", dep.Sunset)
			}
			rc.deprecation = dep
		}

		if len(normalized) > 0 && !slices.Contains(normalized, ver.Name) {
			return Fail(apperrors.NotImplemented(
				fmt.Sprintf("%s %s is not available in API version %s", rc.Method(), rc.Path(), ver.Name)).
				WithDetails(map[string]any{"version": ver.Name, "available": normalized}))
		}
		return Continue()
	})
}
