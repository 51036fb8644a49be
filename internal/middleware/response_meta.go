package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const envelopeMetaKey = "envelope_meta"

// ResponseMeta stamps a metadata map onto the request context so handlers can
// attach cache and timing details to the response envelope. Processing time is
// filled in after the handler runs unless the handler already recorded its own.
func ResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Set(envelopeMetaKey, map[string]interface{}{})
		c.Next()
		meta := metaFor(c)
		if _, ok := meta["processing_time_ms"]; !ok {
			meta["processing_time_ms"] = time.Since(started).Milliseconds()
		}
	}
}

// MarkCacheHit records whether the response was served from cache.
func MarkCacheHit(c *gin.Context, hit bool) {
	metaFor(c)["cache_hit"] = hit
}

// Meta returns the metadata map for the current request, or nil when none has
// been initialised.
func Meta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	if raw, ok := c.Get(envelopeMetaKey); ok {
		if meta, ok := raw.(map[string]interface{}); ok {
			return meta
		}
	}
	return nil
}

func metaFor(c *gin.Context) map[string]interface{} {
	if c == nil {
		return map[string]interface{}{}
	}
	if meta := Meta(c); meta != nil {
		return meta
	}
	meta := make(map[string]interface{})
	c.Set(envelopeMetaKey, meta)
	return meta
}
