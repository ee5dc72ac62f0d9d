package ws

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"lastoasis.ai/internal/protocol"
	"lastoasis.ai/internal/sim/world"
)

// Path is where the push stream is mounted.
const Path = "/ws/world-updates"

const (
	writeWait  = 5 * time.Second
	readWait   = 60 * time.Second
	pingPeriod = 25 * time.Second

	closeMissingToken = "missing_or_invalid_token"
	closeLagging      = "subscriber_lagging"
)

// Source is the slice of the world the push stream needs.
type Source interface {
	AgentByToken(ctx context.Context, token string) (world.Agent, bool, error)
	Subscribe(ctx context.Context, buf int) (*world.Subscription, world.View, error)
	Unsubscribe(sub *world.Subscription)
}

type Server struct {
	world Source
	log   *log.Logger

	// Buffer is the per-connection event backlog. A client that falls
	// further behind is disconnected.
	Buffer int

	upgrader websocket.Upgrader
}

func NewServer(w Source, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		world:  w,
		log:    logger,
		Buffer: 256,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		token := requestToken(r)
		if token == "" {
			closeWith(conn, websocket.ClosePolicyViolation, closeMissingToken)
			return
		}
		a, ok, err := s.world.AgentByToken(ctx, token)
		if err != nil || !ok {
			closeWith(conn, websocket.ClosePolicyViolation, closeMissingToken)
			return
		}

		sub, view, err := s.world.Subscribe(ctx, s.Buffer)
		if err != nil {
			closeWith(conn, websocket.CloseInternalServerErr, "unavailable")
			return
		}
		defer s.world.Unsubscribe(sub)

		if err := writeMsg(conn, protocol.StreamMsg{Kind: protocol.KindSnapshot, State: view}); err != nil {
			return
		}

		pongs := make(chan struct{}, 1)
		done := make(chan struct{})
		go func() {
			defer close(done)
			s.writeLoop(ctx, conn, sub, pongs)
			cancel()
		}()

		s.readLoop(conn, pongs)
		cancel()
		<-done
		s.log.Printf("ws: stream closed agent=%s", a.ID)
	}
}

// writeLoop owns every data write on conn.
func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, sub *world.Subscription, pongs <-chan struct{}) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				closeWith(conn, websocket.CloseTryAgainLater, closeLagging)
				return
			}
			if err := writeMsg(conn, protocol.StreamMsg{Kind: protocol.KindEvent, Event: &ev}); err != nil {
				return
			}
		case <-pongs:
			if err := writeMsg(conn, protocol.StreamMsg{Kind: protocol.KindPong}); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readLoop drains client frames until the connection fails. Only ping
// messages are answered.
func (s *Server) readLoop(conn *websocket.Conn, pongs chan<- struct{}) {
	conn.SetReadLimit(4 * 1024)
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		base, err := protocol.DecodeBase(msg)
		if err != nil || base.Type != protocol.TypePing {
			continue
		}
		select {
		case pongs <- struct{}{}:
		default:
		}
	}
}

func requestToken(r *http.Request) string {
	if t := strings.TrimSpace(r.URL.Query().Get("token")); t != "" {
		return t
	}
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if scheme, t, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(t)
	}
	return ""
}

func writeMsg(conn *websocket.Conn, m protocol.StreamMsg) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}
