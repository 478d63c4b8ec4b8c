package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sort"
	"strings"

	"github.com/nodalis/framework/app"
	"github.com/nodalis/framework/cache"
)

// cachedResponse is what ResponseCache stores in the backing cache.Store.
type cachedResponse struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// ResponseCacheConfig configures a ResponseCache instance.
type ResponseCacheConfig struct {
	Store cache.Store
	// VaryHeaders are included in the cache key alongside method and URI.
	VaryHeaders []string
	TTLSeconds  int
	// MaxBodyBytes bounds what gets cached; larger responses pass through
	// uncached.
	MaxBodyBytes int
}

const defaultMaxCacheBodyBytes = 1 << 20 // 1 MiB

// ResponseCache derives a cache key from method, URI and configured vary
// headers. A hit short-circuits the pipeline with the cached response; a
// miss lets the request through and stores the response if it's cacheable
// (2xx status, no Set-Cookie) and within the configured size bound.
type ResponseCache struct {
	cfg ResponseCacheConfig
}

func NewResponseCache(cfg ResponseCacheConfig) *ResponseCache {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxCacheBodyBytes
	}
	return &ResponseCache{cfg: cfg}
}

func (rc *ResponseCache) Name() string {
	return "response-cache"
}

const responseCacheKeyKey = "_response_cache_key"

func (rc *ResponseCache) ProcessRequest(c app.Context) (bool, error) {
	if c.Request().Method != http.MethodGet && c.Request().Method != http.MethodHead {
		return true, nil
	}

	key := rc.key(c)
	c.Set(responseCacheKeyKey, key)

	if raw := rc.cfg.Store.Get(key); raw != nil {
		if cached, ok := raw.(cachedResponse); ok {
			for name, values := range cached.Headers {
				for _, v := range values {
					c.SetHeader(name, v)
				}
			}
			c.SetHeader("X-Cache", "HIT")
			c.WriteStatus(cached.Status)
			_, err := c.ResponseWriter().Write(cached.Body)
			return false, err
		}
	}

	rec := &recordingWriter{ResponseWriter: c.ResponseWriter(), status: http.StatusOK}
	c.SetResponseWriter(rec)
	c.Set("_response_cache_recorder", rec)
	return true, nil
}

func (rc *ResponseCache) ProcessResponse(c app.Context, handlerErr error) error {
	rec, ok := c.Get("_response_cache_recorder").(*recordingWriter)
	if !ok || handlerErr != nil {
		return handlerErr
	}
	if rec.status < 200 || rec.status >= 300 {
		return handlerErr
	}
	if rec.Header().Get("Set-Cookie") != "" {
		return handlerErr
	}
	if rec.body.Len() > rc.cfg.MaxBodyBytes {
		return handlerErr
	}

	key, _ := c.Get(responseCacheKeyKey).(string)
	if key == "" {
		return handlerErr
	}
	rc.cfg.Store.Put(key, cachedResponse{
		Status:  rec.status,
		Headers: rec.Header().Clone(),
		Body:    rec.body.Bytes(),
	}, rc.cfg.TTLSeconds)
	return handlerErr
}

func (rc *ResponseCache) key(c app.Context) string {
	var b strings.Builder
	b.WriteString(c.Request().Method)
	b.WriteByte(' ')
	b.WriteString(c.Request().URL.RequestURI())

	names := append([]string{}, rc.cfg.VaryHeaders...)
	sort.Strings(names)
	for _, name := range names {
		b.WriteByte('|')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(c.Header(name))
	}

	sum := sha256.Sum256([]byte(b.String()))
	return "responsecache:" + hex.EncodeToString(sum[:])
}

// recordingWriter buffers the response body and status while still writing
// through to the underlying http.ResponseWriter so the client gets the
// response; ResponseCache.ProcessResponse reads the buffer back out.
type recordingWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (w *recordingWriter) WriteHeader(status int) {
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	w.body.Write(p)
	return w.ResponseWriter.Write(p)
}
