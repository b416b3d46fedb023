package controllers

import (
	"time"

	"github.com/gin-gonic/gin"

	"civicsync-core/stream"
)

const (
	// DefaultIdleTimeout closes a stream that has delivered no events for
	// this long. Live connections are otherwise held open indefinitely.
	DefaultIdleTimeout = 30 * time.Minute
	keepAliveInterval  = 15 * time.Second
)

// StreamController serves the live-update SSE endpoint.
type StreamController struct {
	Bus         *stream.Bus
	IdleTimeout time.Duration
}

func NewStreamController(bus *stream.Bus) *StreamController {
	return &StreamController{Bus: bus, IdleTimeout: DefaultIdleTimeout}
}

// Stream subscribes the connection to the notification bus and writes each
// event as one JSON-encoded SSE message. The subscription ends on client
// disconnect or after the idle timeout.
func (sc *StreamController) Stream(c *gin.Context) {
	sub := sc.Bus.Subscribe()
	defer sc.Bus.Unsubscribe(sub.ID())

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Flush()

	idleTimeout := sc.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	idle := time.NewTimer(idleTimeout)
	defer idle.Stop()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-sub.Done():
			return
		case <-idle.C:
			return
		case <-keepAlive.C:
			c.SSEvent("keepalive", time.Now().UTC().Format(time.RFC3339))
			c.Writer.Flush()
		case event := <-sub.Events():
			c.SSEvent("message", event)
			c.Writer.Flush()

			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(idleTimeout)
		}
	}
}
