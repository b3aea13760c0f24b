package routes

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbt-cloudrun/config"
	"github.com/dbt-cloudrun/controllers"
	"github.com/dbt-cloudrun/logging"
	"github.com/dbt-cloudrun/middleware"
	"github.com/dbt-cloudrun/services"
	"github.com/dbt-cloudrun/services/servicestest"
	"github.com/dbt-cloudrun/templates"
	"github.com/dbt-cloudrun/utils"
)

func newTestEngine(t *testing.T, cfg *config.Config, runner *servicestest.FakeRunner) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tmpl, err := templates.Load()
	require.NoError(t, err)

	router := gin.New()
	router.Use(logging.RequestLogger(""), middleware.Recovery())

	service := services.NewDbtService(runner, cfg.ProjectDir, cfg.ProfilesDir, 0)
	SetupRoutes(router, cfg, tmpl, controllers.NewDailyController(service))
	return router
}

func testConfig() *config.Config {
	return &config.Config{GinMode: gin.TestMode, ProjectDir: "dbt", ProfilesDir: "dbt"}
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func dailyRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/daily", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestDailyRunSucceeds(t *testing.T) {
	runner := servicestest.NewFakeRunner()

	w := serve(newTestEngine(t, testConfig(), runner), dailyRequest(`{}`))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `"DBT Run Successfully"`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(logging.RequestIDHeader))
	assert.Equal(t, [][]string{
		{"source", "freshness", "--project-dir", "dbt", "--profiles-dir", "dbt", "--target", "prod"},
		{"build", "--project-dir", "dbt", "--profiles-dir", "dbt", "--target", "prod"},
	}, runner.Calls())
}

func TestDailyRunFreshnessFails(t *testing.T) {
	runner := servicestest.NewFakeRunner().Fail("source")

	w := serve(newTestEngine(t, testConfig(), runner), dailyRequest(`{"target": "staging"}`))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"detail": "DBT source freshness failed"}`, w.Body.String())
	assert.Equal(t, 0, runner.CallCount("build"))
}

func TestStatusPage(t *testing.T) {
	t.Setenv("K_SERVICE", "")
	t.Setenv("K_REVISION", "")
	require.NoError(t, os.Unsetenv("K_SERVICE"))
	require.NoError(t, os.Unsetenv("K_REVISION"))

	w := serve(newTestEngine(t, testConfig(), servicestest.NewFakeRunner()), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "It&#39;s running!")
	assert.Contains(t, w.Body.String(), "Unknown service")
	assert.Contains(t, w.Body.String(), "Unknown revision")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestDailyRequiresAPIKeyWhenConfigured(t *testing.T) {
	hash, err := utils.HashAPIKey("scheduler-key")
	require.NoError(t, err)

	cfg := testConfig()
	cfg.APIKeyHash = hash
	runner := servicestest.NewFakeRunner()
	router := newTestEngine(t, cfg, runner)

	w := serve(router, dailyRequest(`{}`))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, runner.Calls())

	req := dailyRequest(`{}`)
	req.Header.Set("X-API-Key", "scheduler-key")
	w = serve(router, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, runner.Calls(), 2)

	// the status page stays public
	w = serve(router, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORS(t *testing.T) {
	cfg := testConfig()
	cfg.CORSAllowedOrigins = []string{"https://console.example.com"}
	router := newTestEngine(t, cfg, servicestest.NewFakeRunner())

	req := httptest.NewRequest(http.MethodOptions, "/daily", nil)
	req.Header.Set("Origin", "https://console.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := serve(router, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://console.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://elsewhere.example.com")
	w = serve(router, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
