// Package middleware provides HTTP middleware components for the framework.
//
// This file contains CSRF (Cross-Site Request Forgery) protection middleware
// that generates and validates tokens to prevent CSRF attacks. Session
// storage is a pluggable backend the core never mandates, so the token
// round-trips through a cookie instead: double submit, not session-bound.
package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/nodalis/framework/app"
	"github.com/nodalis/framework/config"
	"github.com/nodalis/framework/req"
)

const csrfCookieName = "XSRF-TOKEN"

// ErrCSRFTokenMismatch is returned when a request's CSRF token fails to
// match the value bound to its XSRF-TOKEN cookie.
var ErrCSRFTokenMismatch = errors.New("csrf token mismatch")

// CSRFOpts holds configuration options for CSRF middleware.
type CSRFOpts struct {
	// ExcludePatterns contains regex patterns for routes that should skip CSRF verification.
	// For example: []string{"/api/.*", "/webhooks/.*"}
	ExcludePatterns []string
}

// compiledRegexCache caches compiled regex patterns for performance.
var compiledRegexCache = make(map[string]*regexp.Regexp)

// getRandomToken generates a cryptographically secure random token of the specified length.
func getRandomToken(length int) string {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		slog.Error("csrf: failed to generate token", "error", err)
		panic("failed to generate CSRF token")
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func cookieToken(c app.HttpProvider) string {
	cookie := c.Cookie(csrfCookieName)
	if cookie == nil {
		return ""
	}
	return cookie.Value
}

func matchedToken(c app.HttpProvider) bool {
	cookieVal := cookieToken(c)
	submitted := getTokenFromRequest(c)
	if cookieVal == "" || submitted == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookieVal), []byte(submitted)) == 1
}

func getTokenFromRequest(c app.HttpProvider) string {
	token := c.Header("X-XSRF-TOKEN")
	if token == "" {
		token = c.Request().PostFormValue("_token")
	}
	if token == "" {
		token = c.Request().FormValue("_token")
	}
	if token == "" {
		body := map[string]any{}
		if err := req.DecodeJSONBody(c.ResponseWriter(), c.Request(), &body); err == nil {
			if val, ok := body["_token"].(string); ok {
				token = val
			}
		}
	}
	return token
}

// shouldExcludePath checks if the given path matches any of the exclusion patterns.
func shouldExcludePath(path string, patterns []string) bool {
	for _, pattern := range patterns {
		regex, ok := compiledRegexCache[pattern]
		if !ok {
			var err error
			regex, err = regexp.Compile(pattern)
			if err != nil {
				slog.Warn("csrf: invalid exclusion pattern", "pattern", pattern, "error", err)
				continue
			}
			compiledRegexCache[pattern] = regex
		}
		if regex.MatchString(path) {
			return true
		}
	}
	return false
}

// VerifyCSRF creates and returns a CSRF protection middleware handler with optional configuration.
// If opts is nil, default options are used (no exclusions).
func VerifyCSRF(opts *CSRFOpts) app.Handler {
	return func(c app.Context) error {
		if opts != nil && len(opts.ExcludePatterns) > 0 {
			if shouldExcludePath(c.Request().URL.Path, opts.ExcludePatterns) {
				return c.Next()
			}
		}

		if c.IsReading() || matchedToken(c) {
			if c.WantsHTML() && !strings.HasPrefix(c.Request().URL.Path, "/static") {
				token := cookieToken(c)
				if token == "" {
					token = getRandomToken(40)
				}
				c.Set("_token", token)
				c.SetCookie(&http.Cookie{
					Name:     csrfCookieName,
					Value:    token,
					Expires:  time.Now().Add(config.GetAs[time.Duration]("session.lifetime", time.Hour)),
					Path:     "/",
					Secure:   c.App().InProduction(),
					HttpOnly: false,
					SameSite: http.SameSiteLaxMode,
				})
			}
			return c.Next()
		}

		return c.Forbidden(ErrCSRFTokenMismatch)
	}
}
