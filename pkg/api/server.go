// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package api is the HTTP front end of the gateway
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/Thermoquad/rxbridge/pkg/config"
	"github.com/Thermoquad/rxbridge/pkg/controller"
	"github.com/Thermoquad/rxbridge/pkg/rs232"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Gateway is the part of the controller the HTTP layer uses
type Gateway interface {
	Issue(ctx context.Context, payload []byte, code string) (*rs232.Report, error)
	Result(code string) (*rs232.Report, bool)
	Results() []*rs232.Report
	ClearResult(code string) bool
	Status() controller.Status
}

// Options configures a Server
type Options struct {
	HTTP           config.HTTPConfig
	MetricsPath    string
	MetricsHandler http.Handler // nil disables the metrics route
	Hub            *Hub         // nil disables /events
	Logger         *zap.Logger
}

// Server wraps the gin engine and its http.Server
type Server struct {
	gw          Gateway
	log         *zap.Logger
	waitTimeout time.Duration
	engine      *gin.Engine
	srv         *http.Server
}

// New builds the router: REST command and report routes, health checks,
// metrics and the report event stream
func New(gw Gateway, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Server{
		gw:          gw,
		log:         opts.Logger,
		waitTimeout: opts.HTTP.WaitTimeout,
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())

	r.GET("/", s.handleRoot)

	commands := r.Group("/")
	if opts.HTTP.CommandRate > 0 {
		burst := opts.HTTP.CommandBurst
		if burst < 1 {
			burst = 1
		}
		commands.Use(rateLimit(rate.NewLimiter(rate.Limit(opts.HTTP.CommandRate), burst)))
	}
	operation := s.handleCommand(rs232.OperationPayloadSize)
	system := s.handleCommand(rs232.SystemPayloadSize)
	commands.GET("/operation/:data", operation)
	commands.GET("/operation/:data/:resultcode", operation)
	commands.GET("/system/:data", system)
	commands.GET("/system/:data/:resultcode", system)

	r.GET("/report", s.handleReports)
	r.GET("/report/:id", s.handleReport)
	r.DELETE("/report/:id", s.handleClearReport)

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/readyz", func(c *gin.Context) {
		if gw.Status().Ready {
			c.String(http.StatusOK, "ready")
			return
		}
		c.String(http.StatusServiceUnavailable, "not-ready")
	})

	if opts.MetricsHandler != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(opts.MetricsHandler))
	}
	if opts.Hub != nil {
		r.GET("/events", opts.Hub.Serve)
	}

	s.engine = r
	s.srv = &http.Server{
		Addr:         opts.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  opts.HTTP.ReadTimeout,
		WriteTimeout: opts.HTTP.WriteTimeout,
	}
	return s
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Shutdown. Returns http.ErrServerClosed after a clean shutdown.
func (s *Server) Start() error {
	s.log.Info("http server listening", zap.String("addr", s.srv.Addr))
	return s.srv.ListenAndServe()
}

// Shutdown stops accepting requests and waits for active ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

func rateLimit(l *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow() {
			fail(c, http.StatusTooManyRequests, "Too many commands")
			return
		}
		c.Next()
	}
}
