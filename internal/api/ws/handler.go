package ws

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/GriffinCanCode/griffin-notebook/internal/api/middleware"
	"github.com/GriffinCanCode/griffin-notebook/internal/domain/events"
	"github.com/GriffinCanCode/griffin-notebook/internal/infrastructure/logging"
	"github.com/GriffinCanCode/griffin-notebook/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/griffin-notebook/internal/shared/id"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	replyBuffer    = 8
)

// Focuser records focus changes reported by the host
type Focuser interface {
	Focus(sessionID id.SessionID, focused bool) error
}

// clientMessage is sent by the host
type clientMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Focused   bool   `json:"focused,omitempty"`
}

// serverMessage is sent to the host
type serverMessage struct {
	Type           string        `json:"type"`
	SubscriptionID string        `json:"subscription_id,omitempty"`
	Event          *events.Event `json:"event,omitempty"`
	Message        string        `json:"message,omitempty"`
	Timestamp      int64         `json:"timestamp"`
}

// Handler manages event stream connections
type Handler struct {
	bus      *events.Bus
	focus    Focuser
	metrics  *monitoring.Metrics
	logger   *logging.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a WebSocket handler. focus may be nil, in which case
// focus messages are rejected.
func NewHandler(bus *events.Bus, focus Focuser, metrics *monitoring.Metrics, log *logging.Logger) *Handler {
	if log == nil {
		log = logging.NewNop()
	}
	return &Handler{
		bus:     bus,
		focus:   focus,
		metrics: metrics,
		logger:  log.Named("ws"),
		upgrader: websocket.Upgrader{
			CheckOrigin: checkOrigin,
		},
	}
}

// Non-browser clients send no Origin header.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || middleware.IsLoopbackOrigin(origin)
}

// HandleConnection upgrades the request and streams events until either
// side goes away.
func (h *Handler) HandleConnection(c *gin.Context) {
	kinds, err := parseKinds(c.Query("kinds"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := h.bus.Subscribe(0, kinds...)
	defer sub.Close()

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}
	log := h.logger.With(zap.String("observer_id", sub.ID.String()))
	log.Debug("Event stream opened", zap.Int("kinds", len(kinds)))

	replies := make(chan serverMessage, replyBuffer)
	readerDone := make(chan struct{})
	writerDone := make(chan struct{})

	go h.readLoop(conn, replies, readerDone, writerDone, log)
	h.writeLoop(conn, sub, replies, readerDone, log)
	close(writerDone)

	log.Debug("Event stream closed")
}

func (h *Handler) readLoop(conn *websocket.Conn, replies chan<- serverMessage, done chan<- struct{}, writerDone <-chan struct{}, log *logging.Logger) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		h.recordMessage("in", msg.Type)

		select {
		case replies <- h.handleMessage(msg):
		case <-writerDone:
			return
		}
	}
}

func (h *Handler) handleMessage(msg clientMessage) serverMessage {
	switch msg.Type {
	case "ping":
		return message("pong", "")
	case "focus":
		if h.focus == nil {
			return message("error", "focus reporting is not available")
		}
		if err := h.focus.Focus(id.SessionID(msg.SessionID), msg.Focused); err != nil {
			return message("error", err.Error())
		}
		return message("ack", msg.SessionID)
	default:
		return message("error", "unknown message type")
	}
}

func (h *Handler) writeLoop(conn *websocket.Conn, sub *events.Subscription, replies <-chan serverMessage, readerDone <-chan struct{}, log *logging.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	if err := h.send(conn, serverMessage{Type: "subscribed", SubscriptionID: sub.ID.String(), Timestamp: time.Now().Unix()}); err != nil {
		return
	}

	for {
		select {
		case e, ok := <-sub.Events():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			}
			if err := h.send(conn, serverMessage{Type: "event", Event: &e, Timestamp: e.Timestamp.Unix()}); err != nil {
				log.Debug("WebSocket write failed", zap.Error(err))
				return
			}
		case r := <-replies:
			if err := h.send(conn, r); err != nil {
				log.Debug("WebSocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-readerDone:
			return
		}
	}
}

func (h *Handler) send(conn *websocket.Conn, msg serverMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		return err
	}
	h.recordMessage("out", msg.Type)
	return nil
}

func (h *Handler) recordMessage(direction, msgType string) {
	if h.metrics != nil {
		h.metrics.RecordWSMessage(direction, msgType)
	}
}

func message(kind, text string) serverMessage {
	return serverMessage{Type: kind, Message: text, Timestamp: time.Now().Unix()}
}

func parseKinds(raw string) ([]events.Kind, error) {
	if raw == "" {
		return nil, nil
	}
	var kinds []events.Kind
	for _, part := range strings.Split(raw, ",") {
		k := events.Kind(strings.TrimSpace(part))
		if !k.Valid() {
			return nil, fmt.Errorf("unknown event kind %q", k)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}
