package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JerryLinyx/PressGO/backend"
	"github.com/JerryLinyx/PressGO/controllers"
	"github.com/JerryLinyx/PressGO/importer"
	"github.com/JerryLinyx/PressGO/logging"
	"github.com/JerryLinyx/PressGO/metrics"
	"github.com/JerryLinyx/PressGO/state"
	"github.com/JerryLinyx/PressGO/views"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logging.Nop()
	m := metrics.New("test")
	client := backend.Instrument(backend.NewMemoryClient(), m)
	sessions := state.NewMemorySessionStore(time.Hour)

	articles := controllers.NewArticleController(client, sessions, importer.New(nil, 0), controllers.ArticleOptions{}, log)
	auth := controllers.NewAuthController(client, sessions, state.NewCookieCodec("secret", time.Hour), controllers.CookieConfig{}, articles, log)

	return InitRouter(Deps{
		Auth:      auth,
		Articles:  articles,
		Feed:      controllers.NewFeedController(client, state.NewMemoryPageStore(time.Hour), m, "PressGO", 0, log),
		Health:    controllers.NewHealthController(client),
		Metrics:   m,
		Templates: views.Templates(),
		Logger:    log,
	})
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPublicRoutes(t *testing.T) {
	r := newTestRouter(t)

	for _, path := range []string{"/", "/articles?page=p1", "/api/articles", "/api/health", "/admin"} {
		w := serve(r, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"), path)
	}
}

func TestAdminRoutesAreGuarded(t *testing.T) {
	r := newTestRouter(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/admin/articles"},
		{http.MethodPost, "/admin/articles"},
		{http.MethodGet, "/admin/articles/x/delete"},
		{http.MethodPost, "/admin/articles/x/delete"},
		{http.MethodPost, "/admin/import"},
	} {
		w := serve(r, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, http.StatusSeeOther, w.Code, tc.path)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t)
	serve(r, httptest.NewRequest(http.MethodGet, "/api/articles", nil))

	w := serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `test_http_requests_total{method="GET",route="/api/articles",status="200"} 1`)
	assert.Contains(t, w.Body.String(), `test_backend_calls_total{op="list_articles",outcome="ok"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/articles", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := serve(r, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestAllowedOriginsFromEnv(t *testing.T) {
	t.Setenv("FRONTEND_ORIGINS", " https://a.example , ,https://b.example")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, allowedOrigins())

	t.Setenv("FRONTEND_ORIGINS", " , ")
	assert.Equal(t, []string{"*"}, allowedOrigins())
}
