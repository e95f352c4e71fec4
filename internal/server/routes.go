package server

import (
	"net/http"
	"time"

	"github.com/berfenger/bmsaggregator/internal/core/domain"
	"github.com/berfenger/bmsaggregator/internal/core/events"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type statusResponse struct {
	CompletedCycles uint64               `json:"completed_cycles"`
	AbandonedCycles uint64               `json:"abandoned_cycles"`
	DroppedTicks    uint64               `json:"dropped_ticks"`
	LastCompletedAt *time.Time           `json:"last_completed_at"`
	LastPublishErr  string               `json:"last_publish_error,omitempty"`
	Battery         *events.StatePayload `json:"battery"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/status", s.StatusHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

// StatusHandler reports cycle counters and the last published decision.
func (s *Server) StatusHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.CycleStatusRequest{}, 10*time.Second).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	status, ok := res.(domain.CycleStatusResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected response")
	}
	resp := statusResponse{
		CompletedCycles: status.CompletedCycles,
		AbandonedCycles: status.AbandonedCycles,
		DroppedTicks:    status.DroppedTicks,
	}
	if status.LastDecision != nil {
		payload := events.DecisionToStatePayload(*status.LastDecision)
		resp.Battery = &payload
		at := status.LastCompletedAt
		resp.LastCompletedAt = &at
	}
	if status.LastPublishErr != nil {
		resp.LastPublishErr = status.LastPublishErr.Error()
	}
	return c.JSON(http.StatusOK, resp)
}
