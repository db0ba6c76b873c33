// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/Thermoquad/rxbridge/pkg/controller"
	"github.com/Thermoquad/rxbridge/pkg/rs232"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait    = 5 * time.Second
	pingInterval = 30 * time.Second
	sendQueue    = 32
)

// Event is one message on the /events stream
type Event struct {
	Type      string        `json:"event"` // report, config, powersave or released
	Time      time.Time     `json:"time"`
	Report    *rs232.Report `json:"report,omitempty"`
	Model     string        `json:"model,omitempty"`
	Readiness string        `json:"readiness,omitempty"`
	Released  int           `json:"released,omitempty"`
}

// Hub streams poll loop events to websocket clients. It implements
// controller.Observer; slow clients lose messages rather than stall the loop.
type Hub struct {
	controller.NopObserver

	log      *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub with no clients
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Serve upgrades the request and streams events until the client goes away
func (h *Hub) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{conn: conn, send: make(chan []byte, sendQueue)}
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()
	h.log.Debug("event client connected", zap.String("remote", conn.RemoteAddr().String()))

	go h.writePump(cl)
	h.readPump(cl)
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		delete(h.clients, cl)
		close(cl.send)
	}
}

func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
}

// readPump discards client messages and notices disconnects
func (h *Hub) readPump(cl *client) {
	defer func() {
		h.remove(cl)
		_ = cl.conn.Close()
	}()
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Broadcast queues ev for every client
func (h *Hub) Broadcast(ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("encode event", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		select {
		case cl.send <- msg:
		default:
			h.log.Debug("event dropped for slow client")
		}
	}
}

func (h *Hub) FrameDecoded(f rs232.Frame) {
	switch v := f.(type) {
	case *rs232.Report:
		h.Broadcast(Event{Type: "report", Time: v.Timestamp, Report: v})
	case *rs232.ConfigFrame:
		h.Broadcast(Event{Type: "config", Time: v.Timestamp, Model: v.Model, Readiness: v.Readiness.String()})
	case rs232.Powersave:
		h.Broadcast(Event{Type: "powersave", Time: time.Now()})
	}
}

func (h *Hub) ListenersReleased(n int) {
	h.Broadcast(Event{Type: "released", Time: time.Now(), Released: n})
}
