package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/cookbook/internal/activity"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	activityEventHeartbeat     = "heartbeat"
	defaultActivityBuffer      = 16
	defaultHeartbeatInterval   = 25 * time.Second
	activityStreamWriteTimeout = time.Minute
)

// ActivityDispatcher fans activity events out to the recipient's open streams.
// Publish never blocks; a subscriber whose buffer is full misses the event.
type ActivityDispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*activitySubscriber
	nextID      int64
	bufferSize  int
}

type activitySubscriber struct {
	id     int64
	stream chan activity.Event
}

// NewActivityDispatcher constructs an empty dispatcher.
func NewActivityDispatcher() *ActivityDispatcher {
	return &ActivityDispatcher{
		subscribers: make(map[string]map[int64]*activitySubscriber),
		bufferSize:  defaultActivityBuffer,
	}
}

// Subscribe registers a stream for username until ctx ends or cleanup runs.
func (d *ActivityDispatcher) Subscribe(ctx context.Context, username string) (<-chan activity.Event, func()) {
	if username == "" {
		ch := make(chan activity.Event)
		close(ch)
		return ch, func() {}
	}
	subscriber := &activitySubscriber{
		id:     d.nextSequence(),
		stream: make(chan activity.Event, d.bufferSize),
	}
	d.register(username, subscriber)
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			d.unregister(username, subscriber.id)
		})
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// Publish implements activity.Publisher.
func (d *ActivityDispatcher) Publish(event activity.Event) {
	if event.Recipient == "" || event.Type == "" {
		return
	}
	d.mu.RLock()
	subscribers := d.subscribers[event.Recipient]
	if len(subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*activitySubscriber, 0, len(subscribers))
	for _, subscriber := range subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- event:
		default:
		}
	}
}

// SubscriberCount returns the number of open streams for username.
func (d *ActivityDispatcher) SubscriberCount(username string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers[username])
}

func (d *ActivityDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *ActivityDispatcher) register(username string, subscriber *activitySubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[username]; !ok {
		d.subscribers[username] = make(map[int64]*activitySubscriber)
	}
	d.subscribers[username][subscriber.id] = subscriber
}

func (d *ActivityDispatcher) unregister(username string, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[username]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, username)
		}
	}
	d.mu.Unlock()
}

type heartbeatPayload struct {
	Timestamp time.Time `json:"timestamp"`
}

func (h *httpHandler) handleActivityStream(c *gin.Context) {
	actor := actorFrom(c)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	stream, cleanup := h.activity.Subscribe(ctx, actor.Username)
	defer cleanup()

	controller := http.NewResponseController(c.Writer)
	if err := controller.Flush(); err != nil {
		h.logger.Warn("activity stream flush failed", zap.String("username", actor.Username), zap.Error(err))
		return
	}

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-stream:
			if !ok {
				return
			}
			if !h.writeActivityEvent(c, controller, event.Type, event) {
				return
			}
		case now := <-heartbeat.C:
			if !h.writeActivityEvent(c, controller, activityEventHeartbeat, heartbeatPayload{Timestamp: now.UTC()}) {
				return
			}
		}
	}
}

func (h *httpHandler) writeActivityEvent(c *gin.Context, controller *http.ResponseController, name string, payload any) bool {
	c.SSEvent(name, payload)
	if err := controller.Flush(); err != nil {
		h.logger.Debug("activity stream closed", zap.Error(err))
		return false
	}
	_ = controller.SetWriteDeadline(time.Now().Add(activityStreamWriteTimeout))
	return true
}
