// Package web serves the local status page and a websocket transport
// mirroring the broker traffic: state events out, valve/meter command
// requests in.
package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sweeney/water-guard/internal/battery"
	"github.com/sweeney/water-guard/internal/log"
	"github.com/sweeney/water-guard/internal/meter"
	"github.com/sweeney/water-guard/internal/netmon"
	"github.com/sweeney/water-guard/internal/notify"
	"github.com/sweeney/water-guard/internal/state"
	"github.com/sweeney/water-guard/internal/stats"
	"github.com/sweeney/water-guard/internal/valve"
)

// MaxConnections bounds the websocket registry. The device serves a
// handful of local browsers at most.
const MaxConnections = 2

// ErrCapacity is returned when the connection registry is full.
var ErrCapacity = errors.New("web: connection registry full")

// sendQueueLen bounds each connection's outbound queue. Events are
// latest-state notifications; dropping under backpressure is safe
// because a newer event always follows.
const sendQueueLen = 16

// Containers gives the server read access to the committed state of
// every published source.
type Containers struct {
	Valve   *state.Container[valve.State]
	Meter   *state.Container[meter.State]
	Stats   *state.Container[stats.State]
	Battery *state.Container[battery.State]
	Conn    *state.Container[netmon.State]
}

// Server serves the status page, the JSON snapshot and the websocket
// event stream.
type Server struct {
	httpServer *http.Server
	upgrader   websocket.Upgrader
	containers Containers

	valveCommands *notify.Value[valve.Command]
	meterCommands *notify.Value[meter.Command]
	activity      *notify.Signal

	mu    sync.Mutex
	conns [MaxConnections]*wsConn
}

type wsConn struct {
	id   uuid.UUID
	sock *websocket.Conn

	// out is the outbound queue, drained by the write loop.
	out chan []byte

	mu     sync.Mutex
	closed bool
}

// New creates a Server reading state from the given containers and
// forwarding inbound command requests to the mailboxes.
func New(addr string, containers Containers,
	valveCommands *notify.Value[valve.Command],
	meterCommands *notify.Value[meter.Command],
	activity *notify.Signal) *Server {

	s := &Server{
		containers:    containers,
		valveCommands: valveCommands,
		meterCommands: meterCommands,
		activity:      activity,
		upgrader: websocket.Upgrader{
			// Local device UI; the page and the socket share an origin
			// only when addressed by the same name, which is not a given
			// on a LAN.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/state.json", s.handleJSON)
	mux.HandleFunc("/ws", s.handleWS)

	s.httpServer = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Run serves until ctx is done, then shuts the server down. Passing a
// nil listener binds the configured address.
func (s *Server) Run(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if ln != nil {
			err = s.httpServer.Serve(ln)
		} else {
			err = s.httpServer.ListenAndServe()
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	s.httpServer.Shutdown(shutdownCtx)

	s.mu.Lock()
	for i, c := range s.conns {
		if c != nil {
			c.teardown()
			s.conns[i] = nil
		}
	}
	s.mu.Unlock()

	<-errCh
	return ctx.Err()
}

// ValveSink returns a container sink broadcasting valve state events.
func (s *Server) ValveSink() func(valve.State) {
	return func(v valve.State) {
		if data, err := valveEvent(v); err == nil {
			s.broadcast(data)
		}
	}
}

// MeterSink returns a container sink broadcasting meter state events.
func (s *Server) MeterSink() func(meter.State) {
	return func(v meter.State) {
		if data, err := meterEvent(v); err == nil {
			s.broadcast(data)
		}
	}
}

// StatsSink returns a container sink broadcasting statistics events.
func (s *Server) StatsSink() func(stats.State) {
	return func(v stats.State) {
		if data, err := statsEvent(v); err == nil {
			s.broadcast(data)
		}
	}
}

// BatterySink returns a container sink broadcasting battery events.
func (s *Server) BatterySink() func(battery.State) {
	return func(v battery.State) {
		if data, err := batteryEvent(v); err == nil {
			s.broadcast(data)
		}
	}
}

// ConnSink returns a container sink broadcasting connectivity events.
func (s *Server) ConnSink() func(netmon.State) {
	return func(v netmon.State) {
		if data, err := connEvent(v); err == nil {
			s.broadcast(data)
		}
	}
}

// broadcast queues data on every live connection. Never blocks, so it
// is safe to call from a container sink.
func (s *Server) broadcast(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		if c != nil {
			c.send(data)
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	c := &wsConn{id: uuid.New(), out: make(chan []byte, sendQueueLen)}

	s.mu.Lock()
	slot := -1
	for i, existing := range s.conns {
		if existing == nil {
			slot = i
			break
		}
	}
	if slot < 0 {
		s.mu.Unlock()
		http.Error(w, ErrCapacity.Error(), http.StatusServiceUnavailable)
		return
	}
	s.conns[slot] = c
	s.mu.Unlock()

	sock, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.unregister(c)
		return
	}
	c.sock = sock

	log.Infof("web: client %s connected", c.id)

	s.sendSnapshot(c)
	go c.writeLoop()
	go s.readLoop(c)
}

// sendSnapshot queues one event per source so a fresh client starts
// from the current committed state.
func (s *Server) sendSnapshot(c *wsConn) {
	if data, err := valveEvent(s.containers.Valve.Get()); err == nil {
		c.send(data)
	}
	if data, err := meterEvent(s.containers.Meter.Get()); err == nil {
		c.send(data)
	}
	if data, err := statsEvent(s.containers.Stats.Get()); err == nil {
		c.send(data)
	}
	if data, err := batteryEvent(s.containers.Battery.Get()); err == nil {
		c.send(data)
	}
	if data, err := connEvent(s.containers.Conn.Get()); err == nil {
		c.send(data)
	}
}

func (s *Server) readLoop(c *wsConn) {
	defer func() {
		s.unregister(c)
		log.Infof("web: client %s disconnected", c.id)
	}()

	for {
		var req Request
		if err := c.sock.ReadJSON(&req); err != nil {
			return
		}
		s.handleRequest(c, req)
	}
}

func (s *Server) handleRequest(c *wsConn, req Request) {
	command := strings.ToUpper(strings.TrimSpace(req.Command))

	switch req.Type {
	case "valve":
		switch command {
		case "OPEN":
			s.valveCommands.Set(valve.CommandOpen)
		case "CLOSE":
			s.valveCommands.Set(valve.CommandClose)
		default:
			log.Warnf("web: client %s: unknown valve command %q", c.id, req.Command)
			return
		}
	case "meter":
		switch command {
		case "ARM":
			s.meterCommands.Set(meter.CommandArm)
		case "DISARM":
			s.meterCommands.Set(meter.CommandDisarm)
		default:
			log.Warnf("web: client %s: unknown meter command %q", c.id, req.Command)
			return
		}
	default:
		log.Warnf("web: client %s: unknown request type %q", c.id, req.Type)
		return
	}

	s.activity.Notify()
	c.send(ackEvent(req.ID))
}

func (s *Server) unregister(c *wsConn) {
	s.mu.Lock()
	for i, existing := range s.conns {
		if existing == c {
			s.conns[i] = nil
			break
		}
	}
	s.mu.Unlock()
	c.teardown()
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, s.snapshot())
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(formatJSON(s.snapshot()))
}

func (s *Server) snapshot() snapshot {
	return snapshot{
		Valve:   s.containers.Valve.Get(),
		Meter:   s.containers.Meter.Get(),
		Stats:   s.containers.Stats.Get(),
		Battery: s.containers.Battery.Get(),
		Conn:    s.containers.Conn.Get(),
	}
}

// send queues data without blocking: a connection whose queue is full
// misses this event and catches up on the next one.
func (c *wsConn) send(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.out <- data:
	default:
	}
}

func (c *wsConn) teardown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.out)
	c.mu.Unlock()

	if c.sock != nil {
		c.sock.Close()
	}
}

func (c *wsConn) writeLoop() {
	for data := range c.out {
		if err := c.sock.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}
