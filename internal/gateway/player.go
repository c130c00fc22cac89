package gateway

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/eleven-am/speech-delivery/internal/transport"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// PlayerHub tracks the remote player attached to each session. One
// player per session; a new connection replaces the old one.
type PlayerHub struct {
	log *slog.Logger

	mu    sync.Mutex
	sinks map[string]*transport.WSSink
}

func NewPlayerHub(log *slog.Logger) *PlayerHub {
	if log == nil {
		log = slog.Default()
	}
	return &PlayerHub{
		log:   log.With("component", "player_hub"),
		sinks: make(map[string]*transport.WSSink),
	}
}

func (h *PlayerHub) HandleConnection(c echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing session id")
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "error", err, "session_id", sessionID)
		return err
	}

	sink := transport.NewWSSink(ws, h.log)

	h.mu.Lock()
	if old, ok := h.sinks[sessionID]; ok {
		old.Close()
	}
	h.sinks[sessionID] = sink
	h.mu.Unlock()

	h.log.Info("player connected", "session_id", sessionID)

	go func() {
		<-sink.Done()
		h.detach(sessionID, sink)
	}()
	return nil
}

func (h *PlayerHub) Get(sessionID string) (*transport.WSSink, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sink, ok := h.sinks[sessionID]
	return sink, ok
}

func (h *PlayerHub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sinks)
}

func (h *PlayerHub) detach(sessionID string, sink *transport.WSSink) {
	h.mu.Lock()
	if current, ok := h.sinks[sessionID]; ok && current == sink {
		delete(h.sinks, sessionID)
	}
	h.mu.Unlock()
	h.log.Info("player disconnected", "session_id", sessionID)
}
