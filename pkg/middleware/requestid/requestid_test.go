package requestid

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func serveWithID(header string) (string, string) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Middleware())
	var seen string
	router.GET("/", func(c *gin.Context) {
		seen = Value(c)
		c.Status(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(Header, header)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return seen, rec.Header().Get(Header)
}

func TestMiddlewareKeepsClientID(t *testing.T) {
	seen, echoed := serveWithID("import-42")
	assert.Equal(t, "import-42", seen)
	assert.Equal(t, "import-42", echoed)
}

func TestMiddlewareReplacesUnsafeID(t *testing.T) {
	seen, echoed := serveWithID("bad id\twith spaces")
	assert.NotEqual(t, "bad id\twith spaces", seen)
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, echoed)
}

func TestValueOutsideRequest(t *testing.T) {
	assert.Empty(t, Value(nil))
}
