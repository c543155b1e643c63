package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dfornaro/salonbook/services/booking-service/internal/queue"
)

func newStatusHandler(q *queue.Queue) *BookingHandler {
	return NewBookingHandler(nil, nil, nil, q, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBookStatus_UnknownID(t *testing.T) {
	h := newStatusHandler(queue.New())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/book/status?id=nope", nil)
	rw := httptest.NewRecorder()
	h.BookStatus(rw, req)
	if rw.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rw.Code)
	}
}

func TestBookStatus_PendingIncludesPosition(t *testing.T) {
	q := queue.New()
	h := newStatusHandler(q)

	_, _ = q.Enqueue(queue.Payload{BusinessID: "biz-1", StartTime: time.Now()})
	id, pos := q.Enqueue(queue.Payload{BusinessID: "biz-1", StartTime: time.Now()})
	if pos != 2 {
		t.Fatalf("expected position 2, got %d", pos)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/book/status?id="+id, nil)
	rw := httptest.NewRecorder()
	h.BookStatus(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response json: %v", err)
	}
	if resp["state"] != "pending" {
		t.Fatalf("expected state pending, got %v", resp["state"])
	}
	if got, ok := resp["position"].(float64); !ok || int(got) != 2 {
		t.Fatalf("expected position 2, got %v", resp["position"])
	}
}

func TestBookStatus_RequiresID(t *testing.T) {
	h := newStatusHandler(queue.New())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/book/status", nil)
	rw := httptest.NewRecorder()
	h.BookStatus(rw, req)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}

	reqPost := httptest.NewRequest(http.MethodPost, "/api/v1/public/book/status?id=x", nil)
	rwPost := httptest.NewRecorder()
	h.BookStatus(rwPost, reqPost)
	if rwPost.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rwPost.Code)
	}
}
