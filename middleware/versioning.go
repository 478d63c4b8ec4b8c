package middleware

import (
	"regexp"
	"strings"

	"github.com/nodalis/framework/app"
)

// Strategy identifies where the API version is read from.
type Strategy string

const (
	StrategyURLPath      Strategy = "url-path"
	StrategyHeader       Strategy = "header"
	StrategyQuery        Strategy = "query"
	StrategyAcceptHeader Strategy = "accept-header"
)

const VersionInfoKey = "version_info"

var urlPathVersionPattern = regexp.MustCompile(`^/v(\d+(?:\.\d+)?)(?:/|$)`)
var acceptVersionPattern = regexp.MustCompile(`version=([^;,\s]+)`)

// DeprecationInfo describes a deprecated API version's sunset metadata.
type DeprecationInfo struct {
	// Sunset is an HTTP-date, sent verbatim in the Sunset header.
	Sunset  string
	Warning string
}

// VersionInfo is attached to the request Context once a version has been
// resolved, for handlers and later middleware to read back.
type VersionInfo struct {
	Version      string
	IsDeprecated bool
	APIVersion   string
}

// VersioningConfig configures a Versioning middleware instance.
type VersioningConfig struct {
	Strategy   Strategy
	HeaderName string // used when Strategy == StrategyHeader
	QueryParam string // used when Strategy == StrategyQuery
	Default    string
	Deprecated map[string]DeprecationInfo
}

// Versioning resolves an API version per the configured strategy and
// attaches VersionInfo to the request context; deprecated versions get
// Deprecation, Warning, and Sunset response headers.
type Versioning struct {
	cfg VersioningConfig
}

func NewVersioning(cfg VersioningConfig) *Versioning {
	if cfg.HeaderName == "" {
		cfg.HeaderName = "X-API-Version"
	}
	if cfg.QueryParam == "" {
		cfg.QueryParam = "version"
	}
	return &Versioning{cfg: cfg}
}

func (v *Versioning) Name() string {
	return "versioning"
}

func (v *Versioning) ProcessRequest(c app.Context) (bool, error) {
	version := v.resolve(c)
	if version == "" {
		version = v.cfg.Default
	}

	info := VersionInfo{Version: version, APIVersion: version}
	if dep, ok := v.cfg.Deprecated[version]; ok {
		info.IsDeprecated = true
		c.Set("_deprecation_info", dep)
	}
	c.Set(VersionInfoKey, info)
	return true, nil
}

func (v *Versioning) ProcessResponse(c app.Context, handlerErr error) error {
	info, _ := c.Get(VersionInfoKey).(VersionInfo)
	if !info.IsDeprecated {
		return handlerErr
	}
	dep, _ := c.Get("_deprecation_info").(DeprecationInfo)
	c.SetHeader("Deprecation", "true")
	if dep.Warning != "" {
		c.SetHeader("Warning", dep.Warning)
	}
	if dep.Sunset != "" {
		c.SetHeader("Sunset", dep.Sunset)
	}
	return handlerErr
}

func (v *Versioning) resolve(c app.Context) string {
	switch v.cfg.Strategy {
	case StrategyURLPath:
		if m := urlPathVersionPattern.FindStringSubmatch(c.Request().URL.Path); m != nil {
			return "v" + m[1]
		}
	case StrategyHeader:
		return c.Header(v.cfg.HeaderName)
	case StrategyQuery:
		return c.Query(v.cfg.QueryParam)
	case StrategyAcceptHeader:
		if m := acceptVersionPattern.FindStringSubmatch(c.Header("Accept")); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}
