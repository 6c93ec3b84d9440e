package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, h http.Handler, header, value string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestMetricsHandler_Token(t *testing.T) {
	open := MetricsHandler("")
	assert.Equal(t, http.StatusOK, scrape(t, open, "", "").Code)

	guarded := MetricsHandler("s3cret")
	w := scrape(t, guarded, "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "unauthorized")

	assert.Equal(t, http.StatusUnauthorized, scrape(t, guarded, "X-Metrics-Token", "nope").Code)
	assert.Equal(t, http.StatusOK, scrape(t, guarded, "X-Metrics-Token", "s3cret").Code)
	assert.Equal(t, http.StatusOK, scrape(t, guarded, "Authorization", "Bearer s3cret").Code)
}

func TestRecordPermissionDecision_Exported(t *testing.T) {
	RecordPermissionDecision(context.Background(), NoopMetrics(), "edit", false, "acl_flag")
	RecordPermissionDecision(context.Background(), nil, "view", true, "acl")

	body := scrape(t, MetricsHandler(""), "", "").Body.String()
	assert.Contains(t, body, `forms_permission_decisions_total{action="edit",outcome="deny",reason="acl_flag"}`)
	assert.Contains(t, body, `forms_permission_decisions_total{action="view",outcome="allow",reason="acl"}`)
}

func TestMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware(NoopMetrics()))
	r.Get("/v1/forms/{formId}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/forms/abc", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusTeapot, w.Code)

	body := scrape(t, MetricsHandler(""), "", "").Body.String()
	assert.Contains(t, body, `forms_http_requests_total{method="GET",route="/v1/forms/{formId}",status="418"}`)
}

func TestNoopMetrics(t *testing.T) {
	m := NoopMetrics()
	require.NotNil(t, m)
	assert.NotNil(t, m.RequestsTotal)
	assert.NotNil(t, m.PermissionDecisions)
}
