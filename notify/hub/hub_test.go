package hub

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"
)

func TestPublishFanOutInOrder(t *testing.T) {
	h := New(zaptest.NewLogger(t))

	a, cancelA := h.Subscribe()
	defer cancelA()
	b, cancelB := h.Subscribe()
	defer cancelB()

	h.Publish(Event{ID: "1", Payload: map[string]interface{}{"order_id": 7}})
	h.Publish(Event{ID: "2", Payload: map[string]interface{}{"order_id": 8}})

	for _, sub := range []<-chan Event{a, b} {
		if ev := <-sub; ev.ID != "1" {
			t.Errorf("first event id = %q, want 1", ev.ID)
		}
		if ev := <-sub; ev.ID != "2" {
			t.Errorf("second event id = %q, want 2", ev.ID)
		}
	}
}

func TestPublishAssignsEventID(t *testing.T) {
	h := New(zaptest.NewLogger(t))
	sub, cancel := h.Subscribe()
	defer cancel()

	h.Publish(Event{Payload: map[string]interface{}{"order_id": 1}})
	if ev := <-sub; ev.ID == "" {
		t.Error("publish must assign an id when the producer omitted one")
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	h := New(zaptest.NewLogger(t))
	_, cancel := h.Subscribe() // never drained
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			h.Publish(Event{Payload: map[string]interface{}{"n": i}})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestCanceledSubscriberStopsReceiving(t *testing.T) {
	h := New(zaptest.NewLogger(t))
	sub, cancel := h.Subscribe()
	cancel()

	h.Publish(Event{ID: "after-cancel"})
	select {
	case ev := <-sub:
		t.Errorf("canceled subscriber received %q", ev.ID)
	default:
	}
}

func TestHandlePublish(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := New(zaptest.NewLogger(t))

	sub, cancel := h.Subscribe()
	defer cancel()

	router := gin.New()
	router.POST("/events", h.HandlePublish)

	body := `{"id":"evt_1","type":"info","payload":{"order_id":7,"payment_status":"paid"}}`
	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	ev := <-sub
	if ev.ID != "evt_1" || ev.Type != "info" {
		t.Errorf("broadcast event = %+v", ev)
	}
	if got := ev.Payload["payment_status"]; got != "paid" {
		t.Errorf("payload payment_status = %v", got)
	}
}

func TestHandlePublishRejectsBadJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := New(zaptest.NewLogger(t))

	router := gin.New()
	router.POST("/events", h.HandlePublish)

	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
