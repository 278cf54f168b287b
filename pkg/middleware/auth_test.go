package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/phishers-marketplace/marketplace-api/internal/models"
	"github.com/phishers-marketplace/marketplace-api/internal/sessions"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// fakeToken implements Token
type fakeToken struct {
	data map[string]interface{}
}

func (t *fakeToken) Claims(v interface{}) error {
	if mm, ok := v.(*map[string]interface{}); ok {
		*mm = t.data
		return nil
	}
	return fmt.Errorf("unsupported claims type")
}

// fakeVerifier accepts "<email>-token"
type fakeVerifier struct{}

func (f *fakeVerifier) Verify(ctx context.Context, raw string) (Token, error) {
	switch raw {
	case "goodtoken", "black-token":
		return &fakeToken{data: map[string]interface{}{"sub": "test@example.com"}}, nil
	case "suspended-token":
		return &fakeToken{data: map[string]interface{}{"sub": "sus@example.com"}}, nil
	case "plain-token":
		return &fakeToken{data: map[string]interface{}{"sub": "sus-noreason@example.com"}}, nil
	case "ghost-token":
		return &fakeToken{data: map[string]interface{}{"sub": "ghost@example.com"}}, nil
	}
	return nil, fmt.Errorf("invalid token")
}

type fakeUsers map[string]*models.User

func (f fakeUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return f[email], nil
}

func testUsers() fakeUsers {
	reason := "fraud"
	return fakeUsers{
		"test@example.com":         {ID: "u1", Email: "test@example.com", IsAdmin: true},
		"sus@example.com":          {ID: "u2", Email: "sus@example.com", IsSuspended: true, SuspensionReason: &reason},
		"sus-noreason@example.com": {ID: "u3", Email: "sus-noreason@example.com", IsSuspended: true},
	}
}

func serve(r http.Handler, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	return rw
}

func errorOf(t *testing.T, rw *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &body))
	return body["error"]
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	g := gin.New()
	g.GET("/", AuthMiddleware(&fakeVerifier{}), func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, h := range []string{"", "BadHeader", "Basic abc", "Bearer ", "Bearer nope"} {
		rw := serve(g, h)
		require.Equal(t, http.StatusUnauthorized, rw.Code, h)
		require.Equal(t, "Bearer", rw.Header().Get("WWW-Authenticate"))
		require.Equal(t, CredentialsError, errorOf(t, rw))
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	g := gin.New()
	g.GET("/", AuthMiddleware(&fakeVerifier{}), func(c *gin.Context) {
		claims, ok := c.Get("claims")
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"claims": claims, "token": TokenFrom(c)})
	})
	rw := serve(g, "bearer goodtoken")
	require.Equal(t, http.StatusOK, rw.Code)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &got))
	require.Equal(t, "goodtoken", got["token"])
	require.Equal(t, "test@example.com", got["claims"].(map[string]interface{})["sub"])
}

func TestAuthMiddleware_RejectsBlacklistedToken(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	sessions.SetBlacklistClient(redis.NewClient(&redis.Options{Addr: m.Addr()}))
	defer sessions.SetBlacklistClient(nil)

	require.NoError(t, sessions.BlacklistAccessToken(context.Background(), "black-token", 5*time.Second))

	g := gin.New()
	g.GET("/", AuthMiddleware(&fakeVerifier{}), func(c *gin.Context) { c.Status(http.StatusOK) })

	require.Equal(t, http.StatusUnauthorized, serve(g, "Bearer black-token").Code)
	require.Equal(t, http.StatusOK, serve(g, "Bearer goodtoken").Code)
}

func TestCurrentUserAndRequireAdmin(t *testing.T) {
	g := gin.New()
	auth := []gin.HandlerFunc{AuthMiddleware(&fakeVerifier{}), CurrentUser(testUsers())}
	g.GET("/", append(auth, func(c *gin.Context) {
		c.String(http.StatusOK, UserFrom(c).ID)
	})...)

	rw := serve(g, "Bearer goodtoken")
	require.Equal(t, http.StatusOK, rw.Code)
	require.Equal(t, "u1", rw.Body.String())

	rw = serve(g, "Bearer suspended-token")
	require.Equal(t, http.StatusForbidden, rw.Code)
	require.Equal(t, "Account suspended. Reason: fraud", errorOf(t, rw))

	rw = serve(g, "Bearer plain-token")
	require.Equal(t, http.StatusForbidden, rw.Code)
	require.Equal(t, "Account suspended.", errorOf(t, rw))

	rw = serve(g, "Bearer ghost-token")
	require.Equal(t, http.StatusUnauthorized, rw.Code)
	require.Equal(t, CredentialsError, errorOf(t, rw))
}

func TestRequireAdmin(t *testing.T) {
	g := gin.New()
	g.GET("/", func(c *gin.Context) {
		c.Set(ctxUser, &models.User{ID: c.Query("id"), IsAdmin: c.Query("admin") == "1"})
	}, RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/?id=a&admin=1", nil))
	require.Equal(t, http.StatusNoContent, rw.Code)

	rw = httptest.NewRecorder()
	g.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/?id=b", nil))
	require.Equal(t, http.StatusForbidden, rw.Code)
	require.Equal(t, AdminError, errorOf(t, rw))
}

func TestTokenFromQuery(t *testing.T) {
	g := gin.New()
	g.GET("/ws", TokenFromQuery("token"), AuthMiddleware(&fakeVerifier{}), func(c *gin.Context) { c.Status(http.StatusOK) })

	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/ws?token=goodtoken", nil))
	require.Equal(t, http.StatusOK, rw.Code)
}

func TestCORS(t *testing.T) {
	g := gin.New()
	g.Use(CORS([]string{"http://localhost:3000"}))
	g.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	require.Equal(t, http.StatusNoContent, rw.Code)
	require.Equal(t, "http://localhost:3000", rw.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rw.Header().Get("Access-Control-Allow-Credentials"))
	require.Equal(t, "Content-Disposition", rw.Header().Get("Access-Control-Expose-Headers"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	rw = httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	require.Equal(t, http.StatusOK, rw.Code)
	require.Empty(t, rw.Header().Get("Access-Control-Allow-Origin"))

	check := AllowOrigin([]string{"http://localhost:3000"})
	ok := httptest.NewRequest(http.MethodGet, "/", nil)
	ok.Header.Set("Origin", "http://localhost:3000")
	require.True(t, check(ok))
	bad := httptest.NewRequest(http.MethodGet, "/", nil)
	bad.Header.Set("Origin", "http://evil.example")
	require.False(t, check(bad))
}
