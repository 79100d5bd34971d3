package web

import (
	"bytes"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sweeney/sia-local-control/internal/status"
)

// NewStatus creates the control app's status server. metrics, if non-nil, is
// mounted at /metrics.
func NewStatus(addr string, tracker *status.Tracker, metrics http.Handler) *Server {
	s := newServer(addr)

	s.echo.GET("/", func(c echo.Context) error {
		var buf bytes.Buffer
		if err := renderStatus(&buf, tracker.Snapshot()); err != nil {
			return err
		}
		return c.HTMLBlob(http.StatusOK, buf.Bytes())
	})
	s.echo.GET("/index.json", func(c echo.Context) error {
		return c.JSONBlob(http.StatusOK, status.FormatJSON(tracker.Snapshot()))
	})
	s.echo.GET("/health", handleHealth)
	if metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(metrics))
	}
	return s
}
