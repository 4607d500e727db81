package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sirosfoundation/wg-gateway/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func strPtr(s string) *string { return &s }

type sessionFixture struct {
	gate    *session.Gate
	cookies *SessionCookie
	router  *gin.Engine
}

func newSessionFixture(t *testing.T, secret string) *sessionFixture {
	t.Helper()
	gate := session.NewGate(secret, session.NewMemoryStore(zap.NewNop()), time.Hour, zap.NewNop())
	cookies, err := NewSessionCookie("wg_session", []byte("0123456789abcdef0123456789abcdef"), nil, false, time.Hour)
	require.NoError(t, err)

	router := gin.New()
	router.Use(Session(cookies, gate, zap.NewNop()))
	router.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, GetSessionID(c))
	})
	admin := router.Group("/admin")
	admin.Use(RequireSession(gate))
	admin.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	return &sessionFixture{gate: gate, cookies: cookies, router: router}
}

func (f *sessionFixture) do(path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "wg_session" {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestSession_IssuesCookieOnFirstContact(t *testing.T) {
	f := newSessionFixture(t, "secret")

	w := f.do("/whoami", nil)
	require.Equal(t, http.StatusOK, w.Code)
	id := w.Body.String()
	assert.NotEmpty(t, id)

	cookie := sessionCookie(t, w)
	assert.True(t, cookie.HttpOnly)
	assert.NotContains(t, cookie.Value, id, "cookie value must be encoded")

	// The same identity comes back with the cookie and no new cookie is set
	w = f.do("/whoami", cookie)
	assert.Equal(t, id, w.Body.String())
	assert.Empty(t, w.Result().Cookies())
}

func TestSession_TamperedCookieGetsNewIdentity(t *testing.T) {
	f := newSessionFixture(t, "secret")

	first := f.do("/whoami", nil)
	cookie := sessionCookie(t, first)
	cookie.Value = "x" + cookie.Value

	w := f.do("/whoami", cookie)
	assert.NotEqual(t, first.Body.String(), w.Body.String())
	assert.NotNil(t, sessionCookie(t, w))
}

func TestRequireSession_BlocksUnauthenticated(t *testing.T) {
	f := newSessionFixture(t, "secret")

	w := f.do("/admin", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Not Logged In"}`, w.Body.String())
}

func TestRequireSession_AllowsAuthenticated(t *testing.T) {
	f := newSessionFixture(t, "secret")

	w := f.do("/whoami", nil)
	cookie := sessionCookie(t, w)
	require.NoError(t, f.gate.Login(context.Background(), w.Body.String(), strPtr("secret")))

	w = f.do("/admin", cookie)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireSession_LoggedOutIdentityBlocked(t *testing.T) {
	f := newSessionFixture(t, "secret")

	w := f.do("/whoami", nil)
	id := w.Body.String()
	cookie := sessionCookie(t, w)
	ctx := context.Background()
	require.NoError(t, f.gate.Login(ctx, id, strPtr("secret")))
	require.NoError(t, f.gate.Logout(ctx, id))

	w = f.do("/admin", cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	// A replacement identity was issued
	assert.NotNil(t, sessionCookie(t, w))
}

func TestRequireSession_NoSecretIsOpen(t *testing.T) {
	f := newSessionFixture(t, "")

	w := f.do("/admin", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewSessionCookie_RandomKey(t *testing.T) {
	a, err := NewSessionCookie("s", nil, nil, true, time.Hour)
	require.NoError(t, err)
	b, err := NewSessionCookie("s", nil, nil, true, time.Hour)
	require.NoError(t, err)

	encoded, err := a.codec.Encode("s", "id")
	require.NoError(t, err)

	var out string
	assert.Error(t, b.codec.Decode("s", encoded, &out))
	assert.NoError(t, a.codec.Decode("s", encoded, &out))
	assert.Equal(t, "id", out)
	assert.Equal(t, "s", a.Name())
}

func TestSessionCookie_Encrypted(t *testing.T) {
	cookies, err := NewSessionCookie("s", []byte("hash-key"), []byte("0123456789abcdef"), false, time.Hour)
	require.NoError(t, err)

	router := gin.New()
	router.GET("/", func(c *gin.Context) {
		require.NoError(t, cookies.Write(c, "plain-identity"))
		c.Status(http.StatusNoContent)
	})
	router.GET("/read", func(c *gin.Context) {
		c.String(http.StatusOK, cookies.Read(c))
	})
	router.GET("/clear", func(c *gin.Context) {
		cookies.Clear(c)
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Len(t, w.Result().Cookies(), 1)
	cookie := w.Result().Cookies()[0]
	assert.NotContains(t, cookie.Value, "plain-identity")

	req := httptest.NewRequest(http.MethodGet, "/read", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "plain-identity", w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/clear", nil))
	require.Len(t, w.Result().Cookies(), 1)
	assert.True(t, w.Result().Cookies()[0].MaxAge < 0)
}

func TestLogger(t *testing.T) {
	router := gin.New()
	router.Use(Logger(zap.NewNop()))
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping?x=1", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
