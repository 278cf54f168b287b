package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestRedactQuery(t *testing.T) {
	require.Equal(t, "/chat/ws", RedactQuery("/chat/ws"))
	require.Equal(t, "/items?page=2", RedactQuery("/items?page=2"))
	require.Equal(t, "/chat/ws?token=REDACTED", RedactQuery("/chat/ws?token=eyJhbGciOi.x.y"))
	require.Equal(t, "/x?access_token=REDACTED&page=1", RedactQuery("/x?page=1&access_token=abc"))
	require.Equal(t, "/x?REDACTED", RedactQuery("/x?token=%zz"))
}

func TestRequestLoggerMasksToken(t *testing.T) {
	var buf bytes.Buffer
	orig := gin.DefaultWriter
	gin.DefaultWriter = &buf
	defer func() { gin.DefaultWriter = orig }()

	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/chat/ws", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/chat/ws?token=secret-jwt", nil))
	require.Contains(t, buf.String(), "token=REDACTED")
	require.NotContains(t, buf.String(), "secret-jwt")
}
