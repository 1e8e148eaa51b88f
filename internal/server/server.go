// Package server exposes dashboard exports over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/tomkat-cr/abstractgo/internal/dashboard"
	"github.com/tomkat-cr/abstractgo/internal/export"
)

// Config wires the HTTP service.
type Config struct {
	Source        dashboard.Source
	Exporter      *export.Exporter
	DefaultFormat export.Format
	Log           logrus.FieldLogger
}

// Server serves health, export status and export requests.
type Server struct {
	source        dashboard.Source
	exporter      *export.Exporter
	defaultFormat export.Format
	log           logrus.FieldLogger
	engine        *gin.Engine
}

// New builds the router.
func New(cfg Config) *Server {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	exporter := cfg.Exporter
	if exporter == nil {
		exporter = export.NewExporter()
	}
	format := cfg.DefaultFormat
	if format == "" {
		format = export.FormatPDF
	}
	s := &Server{
		source:        cfg.Source,
		exporter:      exporter,
		defaultFormat: format,
		log:           log.WithField("component", "server"),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(requestLogger(s.log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/export/status", s.exportStatus)
	r.POST("/export", s.createExport)

	s.engine = r
	return s
}

// Handler returns the router for mounting or testing.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run listens on addr until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("export service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down export service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
