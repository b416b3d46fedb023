package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"civicsync-core/stream"
)

func streamRouter(sc *StreamController) *gin.Engine {
	r := gin.New()
	r.GET("/api/sse/stream", sc.Stream)
	return r
}

func waitForSubscribers(t *testing.T, bus *stream.Bus, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for bus.Len() < n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d subscribers, have %d", n, bus.Len())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestStreamDeliversBroadcastEvents(t *testing.T) {
	bus := stream.NewBus()
	router := streamRouter(NewStreamController(bus))

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/sse/stream", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		router.ServeHTTP(w, req)
	}()

	waitForSubscribers(t, bus, 1)
	bus.Broadcast(stream.Event{Type: stream.EventIssueCreated, IssueID: "abc123"})

	// Give the handler a moment to write, then end the connection.
	deadline := time.Now().Add(time.Second)
	for !strings.Contains(w.Body.String(), "abc123") {
		if time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not return after disconnect")
	}

	body := w.Body.String()
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, body, "event:message")
	assert.Contains(t, body, "issue_created")
	assert.Contains(t, body, "abc123")
}

func TestStreamUnsubscribesOnDisconnect(t *testing.T) {
	bus := stream.NewBus()
	router := streamRouter(NewStreamController(bus))

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/sse/stream", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		router.ServeHTTP(w, req)
	}()

	waitForSubscribers(t, bus, 1)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not return after disconnect")
	}
	assert.Equal(t, 0, bus.Len())
}

func TestStreamClosesAfterIdleTimeout(t *testing.T) {
	bus := stream.NewBus()
	sc := NewStreamController(bus)
	sc.IdleTimeout = 20 * time.Millisecond
	router := streamRouter(sc)

	req := httptest.NewRequest(http.MethodGet, "/api/sse/stream", nil)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		router.ServeHTTP(w, req)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream did not close after the idle timeout")
	}
	assert.Equal(t, 0, bus.Len())
}
