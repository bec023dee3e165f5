package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/skillswap-api/pkg/middleware/requestid"
	"github.com/noah-isme/skillswap-api/pkg/response"
)

// WithResponseMeta initialises response metadata storage on the request context.
// Must run after requestid.Middleware.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		meta := map[string]interface{}{}
		if id := requestid.Value(c); id != "" {
			meta["request_id"] = id
		}
		c.Set(response.MetaKey, meta)
		c.Next()
	}
}

// SetMeta stashes a key on the response meta of the current request.
func SetMeta(c *gin.Context, key string, value interface{}) {
	meta := ensureMeta(c)
	meta[key] = value
}

// ExtractMeta returns the metadata map stored on the context.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	if meta, exists := c.Get(response.MetaKey); exists {
		if typed, ok := meta.(map[string]interface{}); ok {
			return typed
		}
	}
	return nil
}

func ensureMeta(c *gin.Context) map[string]interface{} {
	if meta := ExtractMeta(c); meta != nil {
		return meta
	}
	newMeta := make(map[string]interface{})
	c.Set(response.MetaKey, newMeta)
	return newMeta
}
