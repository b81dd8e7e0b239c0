package bridge

import (
	"errors"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dontdude/goconv/internal/domain"
	"github.com/gorilla/websocket"
)

// Text frames of the notification protocol.
const (
	FrameIdentityPrefix  = "session-id;"
	FramePing            = "ping"
	FramePong            = "pong"
	FrameDuplicate       = "duplicate-connection"
	FrameCompletedPrefix = "job-completed;"
	FrameFailedPrefix    = "job-failed;"
)

// unlabeledJob stands in for the job id when a failure has none to report.
const unlabeledJob = "unknown-job"

const defaultWriteTimeout = 10 * time.Second

// SessionState is the lifecycle stage of a SocketSession.
type SessionState int32

const (
	StateHandshaking SessionState = iota
	StateActive
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn is the part of *websocket.Conn a session drives.
// ReadMessage runs on one goroutine and writes on another, matching gorilla's
// one-reader/one-writer rule; WriteControl and Close may be called from either.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	RemoteAddr() net.Addr
	Close() error
}

var _ Conn = (*websocket.Conn)(nil)

// SessionConfig bounds a socket's lifetime.
type SessionConfig struct {
	// HandshakeTimeout caps the wait for the identity frame. Zero waits forever.
	HandshakeTimeout time.Duration
	// PingInterval is the keepalive period. Zero disables keepalive and read deadlines.
	PingInterval time.Duration
	// WriteTimeout bounds every frame write.
	WriteTimeout time.Duration
	// SinkBuffer is the capacity of the session's delivery queue.
	SinkBuffer int
}

// SocketSession relays notifications for one connection.
// It moves Handshaking -> Active -> Closed, or Handshaking -> Closed when the
// handshake fails or the session id is already connected.
type SocketSession struct {
	conn  Conn
	conns *ConnectionRegistry
	cfg   SessionConfig
	log   *slog.Logger

	state atomic.Int32

	mu    sync.Mutex
	owner domain.SessionID
}

// NewSocketSession wraps an upgraded connection.
func NewSocketSession(conn Conn, conns *ConnectionRegistry, cfg SessionConfig) *SocketSession {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	return &SocketSession{
		conn:  conn,
		conns: conns,
		cfg:   cfg,
		log:   slog.With("remoteAddr", conn.RemoteAddr().String()),
	}
}

// State reports the current lifecycle stage.
func (s *SocketSession) State() SessionState {
	return SessionState(s.state.Load())
}

// Owner is the negotiated session id, empty until the handshake succeeds.
func (s *SocketSession) Owner() domain.SessionID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

func (s *SocketSession) setState(st SessionState) {
	s.state.Store(int32(st))
	s.log.Debug("Socket state changed", "state", st.String())
}

// Run drives the session to completion. It returns once the connection is
// closed and the session is unregistered. The connection is always closed on return.
func (s *SocketSession) Run() {
	defer s.conn.Close()
	defer s.setState(StateClosed)

	// 1. Probe the browser before waiting on it
	if err := s.conn.WriteControl(websocket.PingMessage, []byte{1, 2, 3}, time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		s.log.Info("Unable to ping browser, terminating connection", "error", err)
		return
	}

	// 2. Handshake: wait for the identity frame
	owner, err := s.handshake()
	if err != nil {
		s.log.Warn("Socket closed before handshake completed", "error", err)
		return
	}
	s.mu.Lock()
	s.owner = owner
	s.mu.Unlock()
	s.log = s.log.With("sessionID", owner)

	// 3. Register, rejecting the new connection if the session is already live
	sink := NewSink(s.cfg.SinkBuffer)
	if err := s.conns.Register(owner, sink); err != nil {
		if errors.Is(err, domain.ErrAlreadyConnected) {
			duplicateConnections.Inc()
			s.log.Info("Client already connected with this session id")
			s.reject()
			return
		}
		s.log.Error("Failed to register connection", "error", err)
		return
	}

	s.setState(StateActive)
	s.log.Info("Client connected")

	// 4. Relay until the transport goes away
	s.relay(owner, sink)
	s.log.Info("Client disconnected")
}

// handshake reads frames until a well-formed identity frame arrives.
// Everything else is ignored; text pings are answered. The deadline is absolute,
// so a stream of pings cannot hold the session in this state past the timeout.
func (s *SocketSession) handshake() (domain.SessionID, error) {
	if s.cfg.HandshakeTimeout > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.HandshakeTimeout)); err != nil {
			return "", err
		}
	}

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			return "", err
		}
		if mt != websocket.TextMessage {
			continue
		}

		text := string(data)
		if text == FramePing {
			if err := s.writeText(FramePong); err != nil {
				return "", err
			}
			continue
		}
		if id, ok := ParseIdentityFrame(text); ok {
			return id, nil
		}
		s.log.Debug("Ignoring frame before handshake", "frame", text)
	}
}

// relay multiplexes the delivery queue, inbound frames and keepalive ticks.
// The sink is detached as soon as the loop ends, before the transport is torn
// down, so no dispatcher can hand over a notification nobody will write.
func (s *SocketSession) relay(owner domain.SessionID, sink *Sink) {
	pongWait := 2 * s.cfg.PingInterval
	extend := func() error {
		if pongWait <= 0 {
			return s.conn.SetReadDeadline(time.Time{})
		}
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
	if err := extend(); err != nil {
		s.detach(owner, sink)
		return
	}
	s.conn.SetPongHandler(func(string) error { return extend() })

	frames := make(chan string)
	readerDone := make(chan struct{})
	quit := make(chan struct{})
	go s.readLoop(frames, quit, readerDone, extend)
	defer func() {
		s.detach(owner, sink)
		close(quit)
		// Unblocks ReadMessage so the reader can exit.
		_ = s.conn.Close()
		<-readerDone
	}()

	var tick <-chan time.Time
	if s.cfg.PingInterval > 0 {
		ticker := time.NewTicker(s.cfg.PingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case n := <-sink.C():
			frame, ok := RenderNotification(n)
			if !ok {
				// Pending never reaches the client.
				continue
			}
			if err := s.writeText(frame); err != nil {
				s.log.Error("Failed to send notification", "jobID", n.JobID, "error", err)
				return
			}
			notificationsSent.WithLabelValues(n.Status.String()).Inc()
			s.log.Info("Sent notification", "jobID", n.JobID, "status", n.Status.String())

		case text, ok := <-frames:
			if !ok {
				return
			}
			if text == FramePing {
				if err := s.writeText(FramePong); err != nil {
					return
				}
			}

		case <-tick:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.WriteTimeout)); err != nil {
				s.log.Debug("Keepalive ping failed", "error", err)
				return
			}
		}
	}
}

// readLoop forwards inbound text frames until the transport fails.
func (s *SocketSession) readLoop(frames chan<- string, quit <-chan struct{}, done chan<- struct{}, extend func() error) {
	defer close(done)
	defer close(frames)

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("Socket read failed", "error", err)
			}
			return
		}
		if err := extend(); err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		select {
		case frames <- string(data):
		case <-quit:
			return
		}
	}
}

func (s *SocketSession) detach(owner domain.SessionID, sink *Sink) {
	sink.Close()
	s.conns.RemoveIf(owner, sink)
}

// reject tells a duplicate connection why it is being closed.
func (s *SocketSession) reject() {
	if err := s.writeText(FrameDuplicate); err != nil {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, FrameDuplicate)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.cfg.WriteTimeout))
}

func (s *SocketSession) writeText(text string) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

// ParseIdentityFrame extracts the session id from a `session-id;<id>` frame.
func ParseIdentityFrame(text string) (domain.SessionID, bool) {
	id, found := strings.CutPrefix(text, FrameIdentityPrefix)
	if !found {
		return "", false
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", false
	}
	return domain.SessionID(id), true
}

// RenderNotification formats n as a wire frame. It returns false for
// notifications that must not be sent.
func RenderNotification(n domain.Notification) (string, bool) {
	switch n.Status {
	case domain.StatusCompleted:
		if n.ArtifactRef == nil {
			return failedFrame(n.JobID), true
		}
		return FrameCompletedPrefix + strconv.FormatInt(int64(*n.ArtifactRef), 10), true
	case domain.StatusFailed:
		return failedFrame(n.JobID), true
	default:
		return "", false
	}
}

func failedFrame(job domain.JobID) string {
	if job == "" {
		return FrameFailedPrefix + unlabeledJob
	}
	return FrameFailedPrefix + string(job)
}
