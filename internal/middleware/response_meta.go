package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hr-admin-api/pkg/middleware/requestid"
)

const responseMetaKey = "response_meta"

// Meta keys handlers may attach to the response envelope.
const (
	MetaCacheHit  = "cache_hit"
	MetaRequestID = "request_id"
)

// WithResponseMeta prepares a per-request meta map and seeds it with the
// request id so clients can correlate envelopes with server logs.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		meta := map[string]interface{}{}
		if id := requestid.Value(c); id != "" {
			meta[MetaRequestID] = id
		}
		c.Set(responseMetaKey, meta)
		c.Next()
	}
}

// SetCacheHit flags whether the payload came from Redis.
func SetCacheHit(c *gin.Context, hit bool) {
	SetMeta(c, MetaCacheHit, hit)
}

// SetMeta stores an arbitrary meta value for the current response.
func SetMeta(c *gin.Context, key string, value interface{}) {
	if c == nil || key == "" {
		return
	}
	meta, ok := lookupMeta(c)
	if !ok {
		meta = map[string]interface{}{}
		c.Set(responseMetaKey, meta)
	}
	meta[key] = value
}

// ExtractMeta returns the meta collected so far, or nil when nothing was set.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	meta, ok := lookupMeta(c)
	if !ok || len(meta) == 0 {
		return nil
	}
	return meta
}

func lookupMeta(c *gin.Context) (map[string]interface{}, bool) {
	raw, exists := c.Get(responseMetaKey)
	if !exists {
		return nil, false
	}
	meta, ok := raw.(map[string]interface{})
	return meta, ok
}
