package handler_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealth_Endpoints(t *testing.T) {
	r := newRouter(&stubExperimentService{}, stubPinger{})
	for _, path := range []string{"/live", "/ready", "/api/v1/health/live", "/api/v1/health/ready"} {
		w := do(r, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestHealth_ReadinessUnavailable(t *testing.T) {
	r := newRouter(&stubExperimentService{}, stubPinger{err: errors.New("connection refused")})
	w := do(r, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
	// liveness never depends on storage
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/live", nil).Code)
}

func TestDocs_Served(t *testing.T) {
	r := newRouter(&stubExperimentService{}, stubPinger{})
	spec := do(r, http.MethodGet, "/openapi.yaml", nil)
	assert.Equal(t, http.StatusOK, spec.Code)
	assert.Contains(t, spec.Body.String(), "ExperimentPage")
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/docs", nil).Code)
}
