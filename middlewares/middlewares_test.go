package middlewares

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JerryLinyx/PressGO/metrics"
	"github.com/JerryLinyx/PressGO/models"
	"github.com/JerryLinyx/PressGO/state"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type resolverFunc func(c *gin.Context) (*state.Record, error)

func (f resolverFunc) Resolve(c *gin.Context) (*state.Record, error) { return f(c) }

func TestRequireAdmin(t *testing.T) {
	rec := &state.Record{ID: "r1", Session: models.Session{User: models.User{ID: "u1"}}}
	allow := resolverFunc(func(*gin.Context) (*state.Record, error) { return rec, nil })
	deny := resolverFunc(func(*gin.Context) (*state.Record, error) { return nil, errors.New("no session") })

	handler := func(c *gin.Context) {
		assert.Same(t, rec, AdminRecord(c))
		assert.Equal(t, "u1", c.GetString("user_id"))
		c.Status(http.StatusNoContent)
	}

	r := gin.New()
	r.GET("/ok", RequireAdmin(allow), handler)
	r.GET("/denied", RequireAdmin(deny), handler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/denied", nil))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/admin", w.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/denied", nil)
	req.Header.Set("Accept", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, w.Body.String())
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core).Sugar()

	r := gin.New()
	r.Use(RequestLogger(base))
	r.GET("/ping", func(c *gin.Context) {
		Logger(c).Infow("inside handler")
		c.String(http.StatusOK, "pong")
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "inside handler", entries[0].Message)
	assert.Equal(t, "req-42", entries[0].ContextMap()["request_id"])
	assert.Equal(t, "request completed", entries[1].Message)
	assert.EqualValues(t, http.StatusOK, entries[1].ContextMap()["status"])
}

func TestLoggerOutsideMiddlewareIsNop(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.NotNil(t, Logger(c))
}

func TestMetrics(t *testing.T) {
	m := metrics.New("mw")
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/items/1", "/items/2", "/nope"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/items/:id", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "unmatched", "404")))
}
