package middleware

import (
	"strconv"

	"github.com/nodalis/framework/app"
)

// SecurityHeadersConfig controls which security headers SecurityHeaders
// adds to every response. A zero-value field means "don't set that header".
type SecurityHeadersConfig struct {
	ContentSecurityPolicy     string
	HSTSMaxAgeSeconds         int
	HSTSIncludeSubdomains     bool
	FrameOptions              string // e.g. "DENY", "SAMEORIGIN"
	ContentTypeOptionsNoSniff bool
	ReferrerPolicy            string
	PermissionsPolicy         string
	CrossOriginEmbedderPolicy string // COEP
	CrossOriginOpenerPolicy   string // COOP
	CrossOriginResourcePolicy string // CORP
	StripServerHeader         bool
	StripPoweredByHeader      bool
}

// StrictSecurityHeaders is a locked-down preset suitable for a
// browser-facing production deployment.
func StrictSecurityHeaders() SecurityHeadersConfig {
	return SecurityHeadersConfig{
		ContentSecurityPolicy:     "default-src 'self'",
		HSTSMaxAgeSeconds:         63072000,
		HSTSIncludeSubdomains:     true,
		FrameOptions:              "DENY",
		ContentTypeOptionsNoSniff: true,
		ReferrerPolicy:            "no-referrer",
		PermissionsPolicy:         "geolocation=(), camera=(), microphone=()",
		CrossOriginEmbedderPolicy: "require-corp",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "same-origin",
		StripServerHeader:         true,
		StripPoweredByHeader:      true,
	}
}

// DevelopmentSecurityHeaders relaxes CSP/HSTS for local development while
// keeping the cheap, always-safe headers.
func DevelopmentSecurityHeaders() SecurityHeadersConfig {
	return SecurityHeadersConfig{
		FrameOptions:              "SAMEORIGIN",
		ContentTypeOptionsNoSniff: true,
		ReferrerPolicy:            "no-referrer-when-downgrade",
	}
}

// APIFocusedSecurityHeaders drops browser-rendering headers (CSP, frame
// options) that don't apply to a JSON API and keeps transport/sniffing
// protections.
func APIFocusedSecurityHeaders() SecurityHeadersConfig {
	return SecurityHeadersConfig{
		HSTSMaxAgeSeconds:         63072000,
		HSTSIncludeSubdomains:     true,
		ContentTypeOptionsNoSniff: true,
		ReferrerPolicy:            "no-referrer",
		StripServerHeader:         true,
		StripPoweredByHeader:      true,
	}
}

// SecurityHeaders conditionally adds the configured security headers to
// every response and optionally strips identifying headers.
type SecurityHeaders struct {
	cfg SecurityHeadersConfig
}

func NewSecurityHeaders(cfg SecurityHeadersConfig) *SecurityHeaders {
	return &SecurityHeaders{cfg: cfg}
}

func (s *SecurityHeaders) Name() string {
	return "security-headers"
}

func (s *SecurityHeaders) ProcessRequest(c app.Context) (bool, error) {
	return true, nil
}

func (s *SecurityHeaders) ProcessResponse(c app.Context, handlerErr error) error {
	cfg := s.cfg
	if cfg.ContentSecurityPolicy != "" {
		c.SetHeader("Content-Security-Policy", cfg.ContentSecurityPolicy)
	}
	if cfg.HSTSMaxAgeSeconds > 0 {
		value := "max-age=" + strconv.Itoa(cfg.HSTSMaxAgeSeconds)
		if cfg.HSTSIncludeSubdomains {
			value += "; includeSubDomains"
		}
		c.SetHeader("Strict-Transport-Security", value)
	}
	if cfg.FrameOptions != "" {
		c.SetHeader("X-Frame-Options", cfg.FrameOptions)
	}
	if cfg.ContentTypeOptionsNoSniff {
		c.SetHeader("X-Content-Type-Options", "nosniff")
	}
	if cfg.ReferrerPolicy != "" {
		c.SetHeader("Referrer-Policy", cfg.ReferrerPolicy)
	}
	if cfg.PermissionsPolicy != "" {
		c.SetHeader("Permissions-Policy", cfg.PermissionsPolicy)
	}
	if cfg.CrossOriginEmbedderPolicy != "" {
		c.SetHeader("Cross-Origin-Embedder-Policy", cfg.CrossOriginEmbedderPolicy)
	}
	if cfg.CrossOriginOpenerPolicy != "" {
		c.SetHeader("Cross-Origin-Opener-Policy", cfg.CrossOriginOpenerPolicy)
	}
	if cfg.CrossOriginResourcePolicy != "" {
		c.SetHeader("Cross-Origin-Resource-Policy", cfg.CrossOriginResourcePolicy)
	}
	if cfg.StripServerHeader {
		c.ResponseWriter().Header().Del("Server")
	}
	if cfg.StripPoweredByHeader {
		c.ResponseWriter().Header().Del("X-Powered-By")
	}
	return handlerErr
}
