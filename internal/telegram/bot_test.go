package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNotify(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewNotifier("TOKEN", -100)
	n.baseURL = srv.URL + "/bot"
	if err := n.Notify(context.Background(), "Total Value Locked is below the threshold of 1,000,000,000"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if got["chat_id"] != float64(-100) {
		t.Errorf("chat_id = %v, want -100", got["chat_id"])
	}
	if got["text"] != "Total Value Locked is below the threshold of 1,000,000,000" {
		t.Errorf("text = %v", got["text"])
	}
}

func TestNotifyAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	n := NewNotifier("TOKEN", 1)
	n.baseURL = srv.URL + "/bot"
	if err := n.Notify(context.Background(), "x"); err == nil {
		t.Error("expected error for API failure")
	}
}
