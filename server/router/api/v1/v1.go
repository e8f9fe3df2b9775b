// Package v1 exposes the engine over HTTP: chat turns, session history,
// session reset, health, and Prometheus metrics.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/shopsense/ai/metrics"
	"github.com/hrygo/shopsense/ai/rag"
	"github.com/hrygo/shopsense/internal/profile"
)

// APIV1Service holds the handlers for the /api/v1 surface.
type APIV1Service struct {
	Profile  *profile.Profile
	RAG      *rag.Service
	Exporter *metrics.PrometheusExporter
}

func NewAPIV1Service(p *profile.Profile, ragService *rag.Service, exporter *metrics.PrometheusExporter) *APIV1Service {
	return &APIV1Service{Profile: p, RAG: ragService, Exporter: exporter}
}

// Register mounts the API routes on the echo server.
func (s *APIV1Service) Register(e *echo.Echo) {
	group := e.Group("/api/v1")
	group.POST("/chat", s.Chat)
	group.GET("/sessions/:sessionId/history", s.GetHistory)
	group.DELETE("/sessions/:sessionId", s.DeleteSession)

	e.GET("/healthz", s.Health)
	if s.Exporter != nil {
		e.GET("/metrics", echo.WrapHandler(s.Exporter.Handler()))
	}
}

// Health reports liveness, the running version, and an engine snapshot.
func (s *APIV1Service) Health(c echo.Context) error {
	body := echo.Map{
		"status":  "ok",
		"version": s.Profile.Version,
		"mode":    s.Profile.Mode,
	}
	if s.RAG != nil {
		body["engine"] = s.RAG.Stats()
	}
	return c.JSON(http.StatusOK, body)
}
