package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Header carries the correlation id in both directions.
const Header = "X-Request-ID"

const ctxKey = "request_id"

// Middleware tags every request with a correlation id. An incoming id is
// reused when it is at most 128 printable ASCII characters; otherwise a UUID
// is minted.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if !acceptable(id) {
			id = uuid.NewString()
		}
		c.Set(ctxKey, id)
		c.Header(Header, id)
		c.Next()
	}
}

// Value reads the id assigned by Middleware, or "" outside a tagged request.
func Value(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(ctxKey)
}

func acceptable(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
