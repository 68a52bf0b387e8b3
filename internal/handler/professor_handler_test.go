package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/thesis-defense-api/internal/models"
	"github.com/noah-isme/thesis-defense-api/internal/service"
)

type professorListerStub struct {
	rows []models.Professor
	err  error
}

func (s professorListerStub) List(ctx context.Context) ([]models.Professor, error) {
	return s.rows, s.err
}

type pingerStub struct {
	err error
}

func (p pingerStub) PingContext(ctx context.Context) error {
	return p.err
}

func TestProfessorList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &ProfessorHandler{service: professorListerStub{rows: []models.Professor{{ID: "p1", FullName: "Dr. Sari"}}}}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/professors", nil)

	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Dr. Sari")
}

func TestProfessorListFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &ProfessorHandler{service: professorListerStub{err: errors.New("db down")}}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/professors", nil)

	h.List(c)

	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestReadyReportsDatabase(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ready", NewMetricsHandler(nil, pingerStub{err: errors.New("connection refused")}).Ready)
	router.GET("/ready-ok", NewMetricsHandler(nil, pingerStub{}).Ready)

	w := serve(router, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = serve(router, http.MethodGet, "/ready-ok", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPrometheusEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	metrics.ObservePlanningRun(service.PlanOutcomeSuccess, 3, 1, 0)
	router := gin.New()
	router.GET("/metrics", NewMetricsHandler(metrics, nil).Prometheus)

	w := serve(router, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `defense_planning_runs_total{outcome="success"} 1`)
	assert.Contains(t, w.Body.String(), "defenses_scheduled_total 3")
}
