// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/rxbridge/pkg/api"
	"github.com/Thermoquad/rxbridge/pkg/controller"
	"github.com/Thermoquad/rxbridge/pkg/logging"
	"github.com/Thermoquad/rxbridge/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST gateway",
	Long: `Open the receiver connection and serve the REST API.

Routes:
  GET    /                                  model, software version, port and state
  GET    /operation/<3 bytes>[/<code>]      send an operation command
  GET    /system/<4 bytes>[/<code>]         send a system command
  GET    /report[/<code>]                   latest reports
  DELETE /report/<code>                     forget a report
  GET    /events                            websocket stream of reports
  GET    /healthz, /readyz, /metrics

When a result code is given the request waits for the report with that code.
The gateway exits if the connection to the receiver fails.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("listen", "l", "0.0.0.0:5000", "Address for the HTTP server")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logging.New(cfg.Logging)
	defer log.Sync()

	conn, connInfo, err := OpenConnection(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var observers []controller.Observer
	reg := metrics.NewRegistry()
	if cfg.Metrics.Enable {
		observers = append(observers, metrics.New(reg))
	}
	hub := api.NewHub(log.Named("events"))
	observers = append(observers, hub)

	fatal := make(chan error, 1)
	ctrl := controller.New(conn, controller.Options{
		Logger:      log.Named("controller"),
		Observers:   observers,
		PortName:    connInfo,
		IdleCycles:  cfg.Controller.IdleCycles,
		InitBackoff: cfg.Controller.InitBackoff,
		OnTerminate: func(err error) { fatal <- err },
	})

	opts := api.Options{
		HTTP:   cfg.HTTP,
		Hub:    hub,
		Logger: log.Named("http"),
	}
	if cfg.Metrics.Enable {
		metrics.RegisterStatus(reg, ctrl.Status)
		opts.MetricsPath = cfg.Metrics.Path
		opts.MetricsHandler = metrics.Handler(reg)
	}

	gin.SetMode(gin.ReleaseMode)
	srv := api.New(ctrl, opts)

	go func() { _ = ctrl.Run(ctx) }()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Start() }()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case runErr = <-fatal:
		log.Error("receiver connection lost", zap.Error(runErr))
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	}

	stop()
	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	<-ctrl.Stopped()

	return runErr
}
