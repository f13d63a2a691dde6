package signaling

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/magesignaling/relay/internal/auth"
	"github.com/magesignaling/relay/internal/config"
	"github.com/magesignaling/relay/internal/metrics"
	"github.com/magesignaling/relay/internal/origin"
	"github.com/magesignaling/relay/internal/ratelimit"
)

// WebSocketServer implements the signaling handshake and per-connection
// lifecycle.
//
// A connection moves through: upgrade -> parameter/token validation ->
// registration (join announced) -> read loop -> teardown (removal and leave
// announced exactly once). Handshake failures close the socket with an
// application close code and never leave a registry entry behind.
type WebSocketServer struct {
	cfg      config.Config
	log      *slog.Logger
	metrics  *metrics.Metrics
	registry *Registry
	router   *Router
	notifier *Notifier
	clock    ratelimit.Clock
	upgrader websocket.Upgrader
}

func NewWebSocketServer(cfg config.Config, logger *slog.Logger, m *metrics.Metrics) *WebSocketServer {
	registry := NewRegistry(logger, m)
	origins := origin.NewChecker(cfg.AllowedOrigins)
	return &WebSocketServer{
		cfg:      cfg,
		log:      logger,
		metrics:  m,
		registry: registry,
		router:   NewRouter(registry, logger, m),
		notifier: NewNotifier(registry, logger, m),
		clock:    ratelimit.RealClock{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return origins.Allowed(r.Header.Get("Origin"))
			},
		},
	}
}

// Registry exposes the room registry, mainly for tests and introspection.
func (s *WebSocketServer) Registry() *Registry {
	return s.registry
}

func (s *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	roomID := q.Get("roomId")
	userID := q.Get("userId")
	token := q.Get("token")

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", "err", err)
		return
	}

	conn := NewConn(ws, s.log)
	go conn.WritePump(s.cfg.WSPingInterval)

	if roomID == "" || userID == "" {
		conn.Close(CloseMissingParameter, "Missing required parameter")
		return
	}

	switch err := auth.Validate(roomID, userID, token, s.cfg.SharedSecret); err {
	case nil:
	case auth.ErrMissingToken:
		s.metrics.Inc(metrics.EventAuthFailure)
		conn.Close(CloseMissingParameter, "Missing token parameter")
		return
	default:
		s.metrics.Inc(metrics.EventAuthFailure)
		s.log.Info("rejected connection", "room", roomID, "user", userID, "reason", "invalid token")
		conn.Close(CloseInvalidToken, "Invalid token")
		return
	}

	if err := s.registry.Register(roomID, userID, conn); err != nil {
		s.metrics.Inc(metrics.EventDuplicateUser)
		s.log.Info("rejected connection", "room", roomID, "user", userID, "reason", "duplicate user id")
		conn.Close(CloseDuplicateUser, "Duplicate user ID")
		return
	}

	s.metrics.Inc(metrics.EventConnAccepted)
	s.log.Info("connection established", "room", roomID, "user", userID, "remote_addr", r.RemoteAddr)
	s.notifier.MemberJoined(roomID, userID)

	s.readLoop(conn, ws, roomID, userID)
}

// readLoop pumps inbound frames into the router until the connection dies,
// then tears the registration down. Removal is idempotent, so whichever of
// explicit close, transport error, or idle timeout fires first wins and the
// leave event is emitted exactly once.
func (s *WebSocketServer) readLoop(conn *Conn, ws *websocket.Conn, roomID, userID string) {
	defer func() {
		conn.Close(websocket.CloseNormalClosure, "")
		if removed, remaining := s.registry.Remove(roomID, userID); removed {
			s.metrics.Inc(metrics.EventConnClosed)
			s.log.Info("connection closed", "room", roomID, "user", userID)
			s.notifier.MemberLeft(roomID, userID, remaining)
		}
	}()

	ws.SetReadLimit(s.cfg.MaxMessageBytes)
	_ = ws.SetReadDeadline(time.Now().Add(s.cfg.WSIdleTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(s.cfg.WSIdleTimeout))
	})

	rate := int64(s.cfg.MaxMessagesPerSecond)
	limiter := ratelimit.NewTokenBucket(s.clock, rate, rate)

	for {
		msgType, frame, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				s.log.Debug("read failed", "room", roomID, "user", userID, "err", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			conn.Close(websocket.CloseUnsupportedData, "expected text frame")
			return
		}
		if !limiter.Allow(1) {
			s.metrics.Inc(metrics.EventRateLimited)
			conn.Close(websocket.ClosePolicyViolation, "rate limit exceeded")
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(s.cfg.WSIdleTimeout))

		s.router.Route(roomID, userID, frame)
	}
}
