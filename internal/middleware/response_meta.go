package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey = "response_meta"

	metaCacheHit       = "cache_hit"
	metaProcessingTime = "processing_time_ms"
)

// WithResponseMeta attaches a per-request meta map that handlers fill and the
// response envelope renders. Processing time is recorded once the chain returns.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		meta := metaFor(c)
		c.Next()
		if _, ok := meta[metaProcessingTime]; !ok {
			meta[metaProcessingTime] = time.Since(start).Milliseconds()
		}
	}
}

// SetMeta records a single meta value for the current response.
func SetMeta(c *gin.Context, key string, value interface{}) {
	metaFor(c)[key] = value
}

// SetCacheHit marks whether the payload was served from the seating cache.
func SetCacheHit(c *gin.Context, hit bool) {
	SetMeta(c, metaCacheHit, hit)
}

// ExtractMeta returns the meta map collected so far, or nil when nothing was recorded.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	raw, ok := c.Get(responseMetaKey)
	if !ok {
		return nil
	}
	meta, _ := raw.(map[string]interface{})
	if len(meta) == 0 {
		return nil
	}
	return meta
}

func metaFor(c *gin.Context) map[string]interface{} {
	if c == nil {
		return map[string]interface{}{}
	}
	if raw, ok := c.Get(responseMetaKey); ok {
		if meta, ok := raw.(map[string]interface{}); ok {
			return meta
		}
	}
	meta := make(map[string]interface{})
	c.Set(responseMetaKey, meta)
	return meta
}
