package gateway

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/concord-chat/concord/pkg/domain"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second
	// pongWait is how long the read side tolerates silence.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = 25 * time.Second
	// maxBackoff caps the reconnect delay.
	maxBackoff = 30 * time.Second
)

// EventSink receives everything the socket decodes. *session.Adapter
// satisfies it.
type EventSink interface {
	Push(room domain.RoomID, seq uint64, ev domain.Event)
	Signal(ev domain.Event)
	Malformed(err error)
	Reset()
}

// Socket maintains the live event stream over a websocket: it dials the
// homeserver, decodes push frames into the sink, transmits outbound
// commands, and reconnects with backoff when the connection drops.
// Connection lifecycle is surfaced to the sink as ConnectionLost and
// ConnectionRestored events; command replay on reconnect is the session's
// business, not the socket's.
type Socket struct {
	log    *zap.Logger
	url    string
	token  string
	sink   EventSink
	dialer *websocket.Dialer

	sendq chan Frame
	stop  chan struct{}

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewSocket creates a socket for the given homeserver base URL (http or
// https; the scheme is rewritten for the stream endpoint).
func NewSocket(log *zap.Logger, homeserver, token string, sink EventSink) *Socket {
	return &Socket{
		log:    log,
		url:    streamURL(homeserver),
		token:  token,
		sink:   sink,
		dialer: websocket.DefaultDialer,
		sendq:  make(chan Frame, 64),
		stop:   make(chan struct{}),
	}
}

// streamURL turns an http(s) base URL into the ws(s) stream endpoint.
func streamURL(homeserver string) string {
	u := homeserver
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return strings.TrimSuffix(u, "/") + "/api/stream"
}

// Send queues an outbound command frame. It never blocks: on a dead or
// congested connection the error is transient and the command rides the
// post-reconnect replay instead.
func (s *Socket) Send(tx domain.TransactionID, cmd domain.Command) error {
	frame := Frame{
		Type:    frameSend,
		Room:    string(cmd.Room),
		TxID:    uint64(tx),
		Content: cmd.Content,
	}
	select {
	case s.sendq <- frame:
		return nil
	default:
		return fmt.Errorf("gateway.Send: queue full: %w", domain.ErrTransient)
	}
}

// Run connects and keeps the stream alive until Close. It blocks; run it on
// its own goroutine.
func (s *Socket) Run() {
	backoff := time.Second
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		conn, err := s.dial()
		if err != nil {
			s.log.Warn("stream dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			select {
			case <-s.stop:
				return
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		// A new connection restarts the server's stream numbering.
		s.sink.Reset()
		s.sink.Signal(domain.ConnectionRestored{})

		s.serve(conn)

		select {
		case <-s.stop:
			return
		default:
			s.sink.Signal(domain.ConnectionLost{})
		}
	}
}

// Close shuts the socket down for good.
func (s *Socket) Close() {
	close(s.stop)
	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close() //nolint:errcheck // best-effort close
	}
	s.mu.Unlock()
}

func (s *Socket) dial() (*websocket.Conn, error) {
	header := http.Header{}
	if s.token != "" {
		header.Set("Authorization", "Bearer "+s.token)
	}
	conn, resp, err := s.dialer.Dial(s.url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (HTTP %d)", s.url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", s.url, err)
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	return conn, nil
}

// serve runs one connection's read loop, with the write pump alongside, and
// returns when the connection dies.
func (s *Socket) serve(conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go s.writePump(conn, done)

	conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("stream read failed", zap.Error(err))
			}
			return
		}
		ev, err := frame.Event()
		if err != nil {
			s.sink.Malformed(err)
			continue
		}
		if frame.Sequenced() {
			s.sink.Push(domain.RoomID(frame.Room), frame.Seq, ev)
		} else {
			s.sink.Signal(ev)
		}
	}
}

func (s *Socket) writePump(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-s.stop:
			conn.SetWriteDeadline(time.Now().Add(writeWait))                //nolint:errcheck
			conn.WriteMessage(websocket.CloseMessage, []byte{})             //nolint:errcheck
			return
		case frame := <-s.sendq:
			conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := conn.WriteJSON(frame); err != nil {
				s.log.Warn("stream write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
