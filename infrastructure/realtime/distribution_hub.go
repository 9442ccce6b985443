package realtime

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/FanzCEO/GirlFanz-sub003/domain/model"
)

// Hub maintains per-creator subscribers listening for distribution status events.
type Hub struct {
	mu       sync.RWMutex
	creators map[string]map[chan model.DistributionEvent]struct{}
}

func NewDistributionHub() *Hub {
	return &Hub{creators: make(map[string]map[chan model.DistributionEvent]struct{})}
}

// Serve registers an SSE stream for the authenticated creator (creator_id set by middleware).
func (h *Hub) Serve(c *gin.Context) {
	creatorID := c.GetString("creator_id")
	if creatorID == "" {
		c.Status(http.StatusUnauthorized)
		return
	}
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // disable nginx buffering

	ch := make(chan model.DistributionEvent, 8)
	h.addSubscriber(creatorID, ch)
	defer h.removeSubscriber(creatorID, ch)

	_, _ = c.Writer.Write([]byte(":ok\n\n"))
	c.Writer.Flush()

	for {
		select {
		case evt := <-ch:
			data, _ := json.Marshal(evt)
			_, _ = c.Writer.Write([]byte("event: " + evt.Type + "\n"))
			_, _ = c.Writer.Write([]byte("data: "))
			_, _ = c.Writer.Write(data)
			_, _ = c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}

func (h *Hub) addSubscriber(creatorID string, ch chan model.DistributionEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.creators[creatorID] == nil {
		h.creators[creatorID] = make(map[chan model.DistributionEvent]struct{})
	}
	h.creators[creatorID][ch] = struct{}{}
}

func (h *Hub) removeSubscriber(creatorID string, ch chan model.DistributionEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs := h.creators[creatorID]; subs != nil {
		delete(subs, ch)
		if len(subs) == 0 {
			delete(h.creators, creatorID)
		}
	}
}

// Subscribers returns how many streams are open for a creator.
func (h *Hub) Subscribers(creatorID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.creators[creatorID])
}

// Broadcast delivers evt to every stream of its creator. Slow streams miss events.
func (h *Hub) Broadcast(evt model.DistributionEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.creators[evt.CreatorID] {
		select { // non-blocking
		case ch <- evt:
		default:
		}
	}
}
