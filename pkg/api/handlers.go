// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Thermoquad/rxbridge/pkg/controller"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// envelope is the body of every command and report response
type envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Result  any    `json:"result"`
}

func respond(c *gin.Context, status int, message string, result any) {
	c.JSON(status, envelope{Status: status, Message: message, Result: result})
}

// fail aborts with a status and message and no result
func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"status": status, "message": message})
}

func (s *Server) handleRoot(c *gin.Context) {
	st := s.gw.Status()
	c.JSON(http.StatusOK, gin.H{
		"model":    st.Model,
		"software": st.Version,
		"port":     st.Port,
		"state":    st.Readiness.String(),
	})
}

// handleCommand queues a command of exactly size bytes and, when a result code
// is given, waits for the matching report
func (s *Server) handleCommand(size int) gin.HandlerFunc {
	return func(c *gin.Context) {
		data := c.Param("data")
		if len(data) != size {
			fail(c, http.StatusInternalServerError, fmt.Sprintf("Command must be exactly %d bytes", size))
			return
		}

		ctx := c.Request.Context()
		if s.waitTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.waitTimeout)
			defer cancel()
		}

		report, err := s.gw.Issue(ctx, []byte(data), c.Param("resultcode"))
		switch {
		case err == nil:
			respond(c, http.StatusOK, "Command sent", report)
		case errors.Is(err, context.DeadlineExceeded):
			fail(c, http.StatusGatewayTimeout, "Timed out waiting for report")
		case errors.Is(err, context.Canceled):
			c.Abort()
		case errors.Is(err, controller.ErrStopped), errors.Is(err, controller.ErrTransportFault):
			fail(c, http.StatusServiceUnavailable, "Receiver unavailable")
		default:
			s.log.Error("command failed", zap.String("data", data), zap.Error(err))
			fail(c, http.StatusInternalServerError, err.Error())
		}
	}
}

func (s *Server) handleReports(c *gin.Context) {
	respond(c, http.StatusOK, "Results retrieved", s.gw.Results())
}

func (s *Server) handleReport(c *gin.Context) {
	r, ok := s.gw.Result(c.Param("id"))
	if !ok {
		fail(c, http.StatusNotFound, "No such report available")
		return
	}
	respond(c, http.StatusOK, "Result retrieved", r)
}

func (s *Server) handleClearReport(c *gin.Context) {
	if !s.gw.ClearResult(c.Param("id")) {
		fail(c, http.StatusNotFound, "No such report available")
		return
	}
	respond(c, http.StatusOK, "Result cleared", nil)
}
