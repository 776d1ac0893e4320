package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeSpec_ETagRevalidation(t *testing.T) {
	spec := []byte("openapi: 3.0.3\n")
	h := ServeSpec(spec)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/docs/openapi.yaml", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(spec), rec.Body.String())
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/docs/openapi.yaml", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	h(rec, req)

	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = httptest.NewRecorder()
	ServeSpec([]byte("openapi: 3.1.0\n"))(rec, httptest.NewRequest(http.MethodGet, "/docs/openapi.yaml", nil))
	assert.NotEqual(t, etag, rec.Header().Get("ETag"))
}

func TestServeDocs_PointsAtSpec(t *testing.T) {
	rec := httptest.NewRecorder()
	ServeDocs("/docs/openapi.yaml")(rec, httptest.NewRequest(http.MethodGet, "/docs", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `url: "/docs/openapi.yaml"`)
	assert.NotContains(t, rec.Body.String(), "{{SPEC_URL}}")
}
