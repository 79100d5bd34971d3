// Package web serves the local dashboard and the control app's status
// endpoints over HTTP.
package web

import (
	"context"
	"net"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Server wraps an echo instance behind an http.Server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server
}

func newServer(addr string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	return &Server{
		echo: e,
		httpServer: &http.Server{
			Addr:    addr,
			Handler: e,
		},
	}
}

// Handler returns the router. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
