package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/routes/contact"
)

func (a *App) newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(a.logger)

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: a.cfg.AllowOrigins,
		AllowMethods: a.cfg.AllowMethods,
	}))
	e.Use(otelecho.Middleware(a.cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(a.logger))
	e.Use(middleware.Metrics())

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	a.health.RegisterRoutes(e)
	contact.NewHandler(a.engine, a.logger).Register(e)

	return e
}

func (a *App) newHTTPServer() *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Port),
		ReadTimeout:       time.Duration(a.cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(a.cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(a.cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(a.cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    a.cfg.MaxHeaderBytes,
	}
}

func (a *App) serverDependency() *serverDependency {
	return &serverDependency{app: a}
}

type serverDependency struct {
	app *App
}

func (s *serverDependency) GetName() string {
	return DependencyServer
}

func (s *serverDependency) DependsOn() []string {
	return []string{DependencyEngine}
}

func (s *serverDependency) Start(ctx context.Context) error {
	a := s.app
	srv := a.newHTTPServer()

	listener, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
	}

	e := a.newEcho()
	e.Listener = listener
	a.echo = e

	go func() {
		if err := e.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Error("HTTP server stopped unexpectedly")
		}
	}()

	a.logger.WithField("addr", listener.Addr().String()).Info("HTTP server listening")
	return nil
}

func (s *serverDependency) Stop(ctx context.Context) error {
	if s.app.echo == nil {
		return nil
	}
	return s.app.echo.Shutdown(ctx)
}

// Addr returns the address the HTTP server is bound to, or "" before it starts
func (a *App) Addr() string {
	if a.echo == nil || a.echo.Listener == nil {
		return ""
	}
	return a.echo.Listener.Addr().String()
}
