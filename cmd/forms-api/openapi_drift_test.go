package main

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"testing"

	"forms-api/internal/config"
	"forms-api/internal/http/docs"
	"forms-api/internal/http/handler"
	"forms-api/internal/observability/logger"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
)

// technicalRoutes are served but deliberately left out of the API document.
var technicalRoutes = map[string]bool{
	"GET /health":       true,
	"GET /ready":        true,
	"GET /openapi.yaml": true,
	"GET /docs":         true,
}

func TestOpenAPIDriftCheck(t *testing.T) {
	deps := RouterDeps{
		Cfg:               &config.Config{OTELServiceName: "test", AppEnv: "test"},
		Log:               logger.Nop(),
		FormHandler:       &handler.FormHandler{},
		SubmissionHandler: &handler.SubmissionHandler{},
		AclHandler:        &handler.AclHandler{},
		DirectoryHandler:  &handler.DirectoryHandler{},
		GroupHandler:      &handler.GroupHandler{},
	}
	r := buildRouter(deps)

	doc, err := openapi3.NewLoader().LoadFromData(docs.GetSpecBytes())
	if err != nil {
		t.Fatalf("failed to load OpenAPI spec: %v", err)
	}

	documented := make(map[string]bool)
	for path, pathItem := range doc.Paths.Map() {
		for method := range pathItem.Operations() {
			documented[fmt.Sprintf("%s %s", strings.ToUpper(method), path)] = true
		}
	}

	implemented := make(map[string]bool)
	walkFunc := func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if strings.HasPrefix(route, "/debug") || strings.HasPrefix(route, "/metrics") {
			return nil
		}
		m := strings.ToUpper(method)
		if m != "GET" && m != "POST" && m != "PUT" && m != "PATCH" && m != "DELETE" {
			return nil
		}
		key := fmt.Sprintf("%s %s", m, normalizeChiPath(route))
		if !technicalRoutes[key] {
			implemented[key] = true
		}
		return nil
	}
	if err := chi.Walk(r, walkFunc); err != nil {
		t.Fatalf("failed to walk chi router: %v", err)
	}

	var undocumented, unimplemented []string
	for route := range implemented {
		if !documented[route] {
			undocumented = append(undocumented, route)
		}
	}
	for route := range documented {
		if !implemented[route] {
			unimplemented = append(unimplemented, route)
		}
	}

	if len(undocumented) > 0 {
		sort.Strings(undocumented)
		t.Errorf("routes implemented but NOT documented in OpenAPI:\n%s", strings.Join(undocumented, "\n"))
	}
	if len(unimplemented) > 0 {
		sort.Strings(unimplemented)
		t.Errorf("routes documented in OpenAPI but NOT implemented:\n%s", strings.Join(unimplemented, "\n"))
	}
}

// normalizeChiPath removes regex from chi parameters and trailing slashes
func normalizeChiPath(path string) string {
	re := regexp.MustCompile(`\{([^:]+):[^}]+\}`)
	normalized := re.ReplaceAllString(path, "{$1}")

	if len(normalized) > 1 && strings.HasSuffix(normalized, "/") {
		normalized = normalized[:len(normalized)-1]
	}
	return normalized
}
