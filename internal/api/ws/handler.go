package ws

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/heliosproject/helios/kernel/internal/infrastructure/logging"
	"github.com/heliosproject/helios/kernel/internal/infrastructure/monitoring"
	"github.com/heliosproject/helios/kernel/internal/kernel"
	"github.com/heliosproject/helios/kernel/internal/kernel/sched"
	"github.com/heliosproject/helios/kernel/internal/shared/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The monitor carries no credentials; origin checks add nothing.
		return true
	},
}

const (
	writeTimeout = 10 * time.Second
	// outboundBuffer absorbs event bursts between client reads.
	outboundBuffer = 64
)

// Handler manages monitor stream connections.
type Handler struct {
	kernel  *kernel.Kernel
	metrics *monitoring.Metrics
	log     *logging.Logger
}

// NewHandler creates a stream handler. metrics may be nil.
func NewHandler(k *kernel.Kernel, metrics *monitoring.Metrics, log *logging.Logger) *Handler {
	return &Handler{
		kernel:  k,
		metrics: metrics,
		log:     log,
	}
}

// clientMsg is the inbound message envelope.
type clientMsg struct {
	Type string `json:"type"`
	PID  uint64 `json:"pid,omitempty"`
	Data string `json:"data,omitempty"`
}

// HandleConnection upgrades the request and streams scheduler events until
// the client disconnects.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.WSConnect()
		defer h.metrics.WSDisconnect()
	}

	events, cancel := h.kernel.Subscribe()
	defer cancel()

	// gorilla/websocket allows one concurrent writer, so both the event pump
	// and reply traffic funnel through a single outbound channel.
	out := make(chan []byte, outboundBuffer)
	done := make(chan struct{})
	defer close(done)

	go h.pump(events, out, done)

	send(out, envelope{Type: "hello", BootID: h.kernel.BootID()})
	go h.write(conn, out, done)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		var msg clientMsg
		if err := sonic.Unmarshal(raw, &msg); err != nil {
			send(out, envelope{Type: "error", Message: "malformed message"})
			continue
		}

		switch msg.Type {
		case "ping":
			send(out, envelope{Type: "pong"})
		case "input":
			errno := h.kernel.FeedInput(types.PID(msg.PID), []byte(msg.Data))
			if errno != types.OK {
				send(out, envelope{Type: "error", Message: errno.String()})
			}
		default:
			send(out, envelope{Type: "error", Message: "unknown message type"})
		}
	}
}

// envelope is the outbound message shape.
type envelope struct {
	Type    string       `json:"type"`
	BootID  string       `json:"boot_id,omitempty"`
	Message string       `json:"message,omitempty"`
	Event   *eventRecord `json:"event,omitempty"`
}

type eventRecord struct {
	Kind  string    `json:"kind"`
	PID   types.PID `json:"pid"`
	Name  string    `json:"name"`
	State string    `json:"state"`
	Tick  uint64    `json:"tick"`
}

// pump forwards hub events into the outbound channel.
func (h *Handler) pump(events <-chan sched.Event, out chan []byte, done chan struct{}) {
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			send(out, envelope{Type: "event", Event: &eventRecord{
				Kind:  string(e.Type),
				PID:   e.PID,
				Name:  e.Name,
				State: e.State,
				Tick:  e.Tick,
			}})
		case <-done:
			return
		}
	}
}

func send(out chan []byte, e envelope) {
	b, err := sonic.Marshal(e)
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
		// Slow client; drop rather than stall.
	}
}

// write drains the outbound channel onto the connection.
func (h *Handler) write(conn *websocket.Conn, out chan []byte, done chan struct{}) {
	for {
		select {
		case b := <-out:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-done:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
