package wshandler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"whatsapp-service/internal/domain"
	"whatsapp-service/pkg/middleware"
	"whatsapp-service/pkg/notifier/ws"
)

const (
	pongWait     = 60 * time.Second
	maxReadBytes = 512
)

type SnapshotSource interface {
	Snapshot() domain.ConnectionSession
}

type StatusHandler struct {
	manager  *ws.Manager
	session  SnapshotSource
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewStatusHandler accepts upgrades from allowedOrigins; "*" allows any.
func NewStatusHandler(manager *ws.Manager, session SnapshotSource, allowedOrigins []string, logger *zap.Logger) *StatusHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &StatusHandler{
		manager: manager,
		session: session,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

// HandleStatus upgrades to a websocket and streams session snapshots until
// the client goes away. Client messages are read only to process pongs.
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("status stream upgrade failed", zap.Error(err))
		return
	}

	c := h.manager.Add(userID, conn, h.session.Snapshot().View())

	conn.SetReadLimit(maxReadBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		c.Touch()
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
		c.Touch()
	}

	h.manager.Remove(c)
}
