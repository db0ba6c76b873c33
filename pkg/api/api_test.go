// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/rxbridge/pkg/config"
	"github.com/Thermoquad/rxbridge/pkg/controller"
	"github.com/Thermoquad/rxbridge/pkg/rs232"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type issued struct {
	payload string
	code    string
}

// fakeGateway answers commands from a canned report table
type fakeGateway struct {
	mu      sync.Mutex
	issued  []issued
	reports map[string]*rs232.Report
	status  controller.Status
	err     error
	block   bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{reports: map[string]*rs232.Report{}}
}

func (g *fakeGateway) Issue(ctx context.Context, payload []byte, code string) (*rs232.Report, error) {
	g.mu.Lock()
	g.issued = append(g.issued, issued{string(payload), code})
	block, err := g.block, g.err
	r := g.reports[code]
	g.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil || code == "" {
		return nil, err
	}
	return r, nil
}

func (g *fakeGateway) Result(code string) (*rs232.Report, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.reports[code]
	return r, ok
}

func (g *fakeGateway) Results() []*rs232.Report {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []*rs232.Report
	for _, r := range g.reports {
		out = append(out, r)
	}
	return out
}

func (g *fakeGateway) ClearResult(code string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.reports[code]
	delete(g.reports, code)
	return ok
}

func (g *fakeGateway) Status() controller.Status {
	return g.status
}

func do(t *testing.T, s *Server, method, path string) (int, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(method, path, nil))

	var body map[string]any
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	}
	return rr.Code, body
}

func TestRoot(t *testing.T) {
	gw := newFakeGateway()
	gw.status = controller.Status{Model: "R0178", Version: "3", Port: "/dev/ttyUSB0", Readiness: rs232.ReadinessStandby}
	s := New(gw, Options{})

	code, body := do(t, s, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{
		"model":    "R0178",
		"software": "3",
		"port":     "/dev/ttyUSB0",
		"state":    "standby",
	}, body)
}

func TestCommandRoutes(t *testing.T) {
	gw := newFakeGateway()
	gw.reports["20"] = &rs232.Report{Category: "0", Guard: "0", Code: "20", Data: "01", Valid: true}
	s := New(gw, Options{})

	tests := []struct {
		name    string
		path    string
		status  int
		message string
		issued  *issued
	}{
		{"operation with code", "/operation/E1D/20", 200, "Command sent", &issued{"E1D", "20"}},
		{"operation fire and forget", "/operation/E1D", 200, "Command sent", &issued{"E1D", ""}},
		{"operation wrong size", "/operation/E1", 500, "Command must be exactly 3 bytes", nil},
		{"system", "/system/0010/20", 200, "Command sent", &issued{"0010", "20"}},
		{"system wrong size", "/system/001", 500, "Command must be exactly 4 bytes", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw.mu.Lock()
			gw.issued = nil
			gw.mu.Unlock()

			code, body := do(t, s, http.MethodGet, tt.path)
			assert.Equal(t, tt.status, code)
			assert.Equal(t, float64(tt.status), body["status"])
			assert.Equal(t, tt.message, body["message"])

			gw.mu.Lock()
			defer gw.mu.Unlock()
			if tt.issued == nil {
				assert.Empty(t, gw.issued)
			} else {
				assert.Equal(t, []issued{*tt.issued}, gw.issued)
			}
		})
	}
}

func TestCommandResultBody(t *testing.T) {
	gw := newFakeGateway()
	gw.reports["20"] = &rs232.Report{Category: "0", Guard: "0", Code: "20", Data: "01", Valid: true}
	s := New(gw, Options{})

	_, body := do(t, s, http.MethodGet, "/operation/E1D/20")
	assert.Equal(t, map[string]any{
		"type": "0", "guard": "0", "command": "20", "data": "01", "valid": true,
	}, body["result"])

	// released without a report
	_, body = do(t, s, http.MethodGet, "/operation/E1D/99")
	assert.Contains(t, body, "result")
	assert.Nil(t, body["result"])
}

func TestCommandErrors(t *testing.T) {
	gw := newFakeGateway()
	gw.err = controller.ErrStopped
	s := New(gw, Options{})

	code, _ := do(t, s, http.MethodGet, "/operation/E1D/20")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	gw.err = nil
	gw.block = true
	s = New(gw, Options{HTTP: config.HTTPConfig{WaitTimeout: 10 * time.Millisecond}})
	code, body := do(t, s, http.MethodGet, "/operation/E1D/20")
	assert.Equal(t, http.StatusGatewayTimeout, code)
	assert.Equal(t, "Timed out waiting for report", body["message"])
}

func TestCommandRateLimit(t *testing.T) {
	gw := newFakeGateway()
	s := New(gw, Options{HTTP: config.HTTPConfig{CommandRate: 0.001, CommandBurst: 2}})

	for i := 0; i < 2; i++ {
		code, _ := do(t, s, http.MethodGet, "/operation/E1D")
		assert.Equal(t, http.StatusOK, code)
	}
	code, body := do(t, s, http.MethodGet, "/operation/E1D")
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "Too many commands", body["message"])

	// reports are not limited
	code, _ = do(t, s, http.MethodGet, "/report")
	assert.Equal(t, http.StatusOK, code)
}

func TestReportRoutes(t *testing.T) {
	gw := newFakeGateway()
	gw.reports["20"] = &rs232.Report{Code: "20", Data: "01", Valid: true}
	s := New(gw, Options{})

	code, body := do(t, s, http.MethodGet, "/report")
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body["result"], 1)

	code, body = do(t, s, http.MethodGet, "/report/20")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Result retrieved", body["message"])

	code, body = do(t, s, http.MethodGet, "/report/21")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "No such report available", body["message"])

	code, _ = do(t, s, http.MethodDelete, "/report/20")
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, s, http.MethodDelete, "/report/20")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHealthAndMetrics(t *testing.T) {
	gw := newFakeGateway()
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("rxbridge_ready 0\n"))
	})
	s := New(gw, Options{MetricsPath: "/prom", MetricsHandler: metrics})

	code, _ := do(t, s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, code)

	code, _ = do(t, s, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	gw.status.Ready = true
	code, _ = do(t, s, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusOK, code)

	code, _ = do(t, s, http.MethodGet, "/prom")
	assert.Equal(t, http.StatusOK, code)
}

func TestEventStream(t *testing.T) {
	hub := NewHub(nil)
	s := New(newFakeGateway(), Options{Hub: hub})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/events", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	hub.FrameDecoded(&rs232.Report{Code: "20", Data: "01", Valid: true, Timestamp: time.Now()})
	hub.ListenersReleased(2)

	var ev Event
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "report", ev.Type)
	require.NotNil(t, ev.Report)
	assert.Equal(t, "20", ev.Report.Code)

	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "released", ev.Type)
	assert.Equal(t, 2, ev.Released)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 5*time.Millisecond)
}
