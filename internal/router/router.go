package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vaskular/vaskular-backend/internal/handler"
)

// New returns an Echo instance with the stock middleware every route uses:
// panic recovery, a request id on every response and an access log line per
// request.
func New() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(echomw.Logger())
	return e
}

// RegisterRoutes registers the operational routes: the root banner, liveness
// and readiness probes, and the Prometheus metrics endpoint.  The Pinger is
// consulted by /readyz.
func RegisterRoutes(e *echo.Echo, store handler.Pinger) {
	e.GET("/", handler.Root)
	// liveness, process only
	e.GET("/healthz", handler.Health)
	// readiness, database must answer
	e.GET("/readyz", handler.Ready(store))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterScores registers the score endpoints.  limit wraps every score
// route; cache wraps only history, since every recovery plan request goes to
// the advisor.  Either may be nil.
func RegisterScores(e *echo.Echo, h *handler.ScoreHandler, limit, cache echo.MiddlewareFunc) {
	var all, cached []echo.MiddlewareFunc
	if limit != nil {
		all = append(all, limit)
	}
	cached = append(cached, all...)
	if cache != nil {
		cached = append(cached, cache)
	}

	// Accept the submit path with and without the trailing slash.
	e.POST("/submit_scores/", h.SubmitScores, all...)
	e.POST("/submit_scores", h.SubmitScores, all...)
	e.GET("/get_recovery_plan/:user_id", h.GetRecoveryPlan, all...)
	e.GET("/get_history/:user_id", h.GetHistory, cached...)
}
