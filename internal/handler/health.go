package handler // declare the package name; contains HTTP handlers

import (
    "context"  // context bounds the readiness ping
    "net/http" // net/http provides status codes and response helpers
    "time"     // time sets the readiness timeout

    "github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// RootMessage is returned by GET / to show the service is up.
const RootMessage = "Vaskular Backend is Live!"

// Root answers GET / with the liveness banner.
func Root(c echo.Context) error {
    return c.JSON(http.StatusOK, echo.Map{"message": RootMessage})
}

// Health is a simple health‑check endpoint used by load balancers and
// monitoring systems to verify that the process is running.  It returns
// a plain text "ok" message with an HTTP 200 status code.
func Health(c echo.Context) error {
    return c.String(http.StatusOK, "ok")
}

// Pinger is implemented by stores that can report their reachability.
type Pinger interface {
    Ping(ctx context.Context) error
}

// Ready returns a handler reporting whether the database answers a ping.
func Ready(p Pinger) echo.HandlerFunc {
    return func(c echo.Context) error {
        ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
        defer cancel()
        if err := p.Ping(ctx); err != nil {
            c.Logger().Warnf("readiness: %v", err)
            return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable"})
        }
        return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
    }
}
