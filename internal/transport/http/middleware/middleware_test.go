package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"go-gin-gorm-accounts/internal/core/auth"
	"go-gin-gorm-accounts/internal/core/logger"
	"go-gin-gorm-accounts/internal/domain"
)

func init() { gin.SetMode(gin.TestMode) }

const secret = "0123456789abcdef0123456789abcdef"

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthJWT(t *testing.T) {
	j := auth.NewJWTer(secret, "accounts", time.Hour)
	r := gin.New()
	r.GET("/me", AuthJWT(j, ""), func(c *gin.Context) {
		caller := CallerFrom(c)
		c.String(http.StatusOK, caller.ID+"/"+string(caller.Role))
	})
	r.GET("/admin", AuthJWT(j, domain.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	userTok, err := j.Issue("u1", "u@x.com", "USER")
	require.NoError(t, err)
	badRoleTok, err := j.Issue("u1", "u@x.com", "ROOT")
	require.NoError(t, err)

	req := func(path, tok string) *http.Request {
		rq := httptest.NewRequest(http.MethodGet, path, nil)
		if tok != "" {
			rq.Header.Set("Authorization", "Bearer "+tok)
		}
		return rq
	}

	w := serve(r, req("/me", userTok))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1/USER", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, serve(r, req("/me", "")).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, req("/me", "garbage")).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, req("/me", badRoleTok)).Code)
	assert.Equal(t, http.StatusForbidden, serve(r, req("/admin", userTok)).Code)
}

func TestCallerFromWithoutAuth(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.False(t, CallerFrom(c).Authenticated())
}

func TestRateLimitPerIP(t *testing.T) {
	r := gin.New()
	r.GET("/", RateLimitPerIP(0.001, 2, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })

	from := func(ip string) int {
		rq := httptest.NewRequest(http.MethodGet, "/", nil)
		rq.RemoteAddr = ip + ":1234"
		return serve(r, rq).Code
	}
	assert.Equal(t, http.StatusOK, from("10.0.0.1"))
	assert.Equal(t, http.StatusOK, from("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, from("10.0.0.1"))
	assert.Equal(t, http.StatusOK, from("10.0.0.2"))
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.GET("/", RequestID(), func(c *gin.Context) { c.String(http.StatusOK, c.GetString(KeyRequestID)) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Header().Get(KeyRequestID))
	assert.Equal(t, w.Header().Get(KeyRequestID), w.Body.String())

	rq := httptest.NewRequest(http.MethodGet, "/", nil)
	rq.Header.Set(KeyRequestID, "abc")
	assert.Equal(t, "abc", serve(r, rq).Header().Get(KeyRequestID))
}

func TestRequestFieldsReachContextLogger(t *testing.T) {
	j := auth.NewJWTer(secret, "accounts", time.Hour)
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	r := gin.New()
	r.Use(RequestID())
	r.GET("/open", func(c *gin.Context) { logger.FromContext(c.Request.Context(), base).Info("open") })
	r.GET("/me", AuthJWT(j, ""), func(c *gin.Context) { logger.FromContext(c.Request.Context(), base).Info("me") })

	tok, err := j.Issue("u1", "u@x.com", "USER")
	require.NoError(t, err)

	rq := httptest.NewRequest(http.MethodGet, "/open", nil)
	rq.Header.Set(KeyRequestID, "rid-1")
	serve(r, rq)
	rq = httptest.NewRequest(http.MethodGet, "/me", nil)
	rq.Header.Set("Authorization", "Bearer "+tok)
	w := serve(r, rq)

	all := logs.All()
	require.Len(t, all, 2)
	assert.Equal(t, map[string]any{"rid": "rid-1"}, all[0].ContextMap())
	assert.Equal(t, w.Header().Get(KeyRequestID), all[1].ContextMap()["rid"])
	assert.Equal(t, "u1", all[1].ContextMap()["caller"])
}

func TestMetricsByRoleSkipsHealthAndMetrics(t *testing.T) {
	j := auth.NewJWTer(secret, "accounts", time.Hour)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/users/:id", AuthJWT(j, ""), func(c *gin.Context) { c.Status(http.StatusOK) })

	tok, err := j.Issue("u1", "u@x.com", "USER")
	require.NoError(t, err)

	ok := httpReqTotal.WithLabelValues("/users/:id", http.MethodGet, "200", "USER")
	denied := httpReqTotal.WithLabelValues("/users/:id", http.MethodGet, "401", "anonymous")
	health := httpReqTotal.WithLabelValues("/health", http.MethodGet, "200", "anonymous")
	okBefore, deniedBefore, healthBefore := testutil.ToFloat64(ok), testutil.ToFloat64(denied), testutil.ToFloat64(health)

	rq := httptest.NewRequest(http.MethodGet, "/users/u1", nil)
	rq.Header.Set("Authorization", "Bearer "+tok)
	serve(r, rq)
	serve(r, httptest.NewRequest(http.MethodGet, "/users/u1", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, okBefore+1, testutil.ToFloat64(ok))
	assert.Equal(t, deniedBefore+1, testutil.ToFloat64(denied))
	assert.Equal(t, healthBefore, testutil.ToFloat64(health))
}

func TestTimeout(t *testing.T) {
	r := gin.New()
	r.GET("/", Timeout(10*time.Millisecond), func(c *gin.Context) {
		<-c.Request.Context().Done()
	})
	assert.Equal(t, http.StatusGatewayTimeout, serve(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
}

func TestAccessLogMasksSecrets(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := gin.New()
	r.Use(RequestID(), AccessLog(zap.New(core)))
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusTeapot, "hi") })

	serve(r, httptest.NewRequest(http.MethodGet, "/x?password=hunter2&q=ok", nil))
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.EqualValues(t, http.StatusTeapot, fields["status"])
	assert.EqualValues(t, 2, fields["size"])
	assert.Equal(t, map[string][]string{"password": {"****"}, "q": {"ok"}}, fields["query"])
	assert.NotEmpty(t, fields["rid"])
}
