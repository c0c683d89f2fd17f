// In-process event hub backing the event service: order/charge events come
// in over an authenticated POST and fan out to subscribed event-stream
// clients in arrival order.

package hub

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event is what the stream carries. Payload may reference an order via
// payload.order_id.
type Event struct {
	ID      string                 `json:"id"`
	Type    string                 `json:"type,omitempty"` // info | warning | error
	Payload map[string]interface{} `json:"payload"`
}

const subscriberBuffer = 64

type Hub struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	logger *zap.Logger
}

func New(logger *zap.Logger) *Hub {
	return &Hub{
		subs:   make(map[chan Event]struct{}),
		logger: logger,
	}
}

// Subscribe registers a stream consumer. The cancel func must be called
// when the consumer goes away.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish fans the event out to every subscriber. Events are delivered in
// arrival order; a subscriber that cannot keep up drops events rather than
// blocking the publisher.
func (h *Hub) Publish(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("dropping event for slow subscriber", zap.String("event_id", ev.ID))
		}
	}
}

// HandlePublish accepts an event over POST and broadcasts it.
func (h *Hub) HandlePublish(c *gin.Context) {
	var ev Event
	if err := c.BindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event"})
		return
	}
	h.Publish(ev)
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

// HandleStream serves the event stream. The connection lives exactly as
// long as the client stays connected.
func (h *Hub) HandleStream(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	events, cancel := h.Subscribe()
	defer cancel()

	ping := time.NewTicker(15 * time.Second)
	defer ping.Stop()

	c.Writer.Flush()
	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			c.Writer.WriteString(": ping\n\n")
			c.Writer.Flush()
		case ev := <-events:
			sse.Encode(c.Writer, sse.Event{
				Id:    ev.ID,
				Event: ev.Type,
				Data:  ev.Payload,
			})
			c.Writer.Flush()
		}
	}
}
