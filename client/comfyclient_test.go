package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
)

const historyJSON = `{
	"b7c1": {
		"prompt": [
			4,
			"b7c1",
			{
				"3": {"class_type": "KSampler", "inputs": {"seed": 1, "positive": ["6", 0]}},
				"6": {"class_type": "CLIPTextEncode", "inputs": {"text": "a fox"}}
			},
			{"extra_pnginfo": {"workflow": {}}},
			["9"]
		],
		"outputs": {"9": {"images": [{"filename": "fox_00001_.png", "subfolder": "", "type": "output"}]}}
	},
	"a0f2": {
		"prompt": [1, "a0f2", {"1": {"class_type": "KSampler", "inputs": {}}}, {}, []],
		"outputs": {}
	}
}`

func newTestClient(t *testing.T, srv *httptest.Server) *ComfyClient {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("Failed to parse server url: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("Failed to parse server port: %v", err)
	}
	return NewComfyClient(u.Hostname(), port, "http")
}

func historyServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/history", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(historyJSON))
	})
	mux.HandleFunc("/history/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/history/")
		if id == "b7c1" {
			w.Write([]byte(historyJSON))
			return
		}
		w.Write([]byte(`{}`))
	})
	return httptest.NewServer(mux)
}

func TestGetPromptHistory(t *testing.T) {
	srv := historyServer()
	defer srv.Close()
	c := newTestClient(t, srv)

	items, err := c.GetPromptHistoryByIndex(context.Background())
	if err != nil {
		t.Fatalf("GetPromptHistoryByIndex failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 history items, got %d", len(items))
	}
	if items[0].PromptID != "a0f2" || items[1].PromptID != "b7c1" {
		t.Errorf("Expected items ordered by index, got %s, %s", items[0].PromptID, items[1].PromptID)
	}

	fox := items[1]
	if fox.Prompt == nil {
		t.Fatal("Expected prompt workflow to be decoded")
	}
	if diff := cmp.Diff([]string{"3", "6"}, fox.Prompt.Order); diff != "" {
		t.Errorf("Prompt order mismatch (-want +got):\n%s", diff)
	}
	if got := fox.Outputs["9"]; len(got) != 1 || got[0].Filename != "fox_00001_.png" {
		t.Errorf("Unexpected outputs %+v", fox.Outputs)
	}

	item, err := c.GetPromptHistoryItem(context.Background(), "b7c1")
	if err != nil {
		t.Fatalf("GetPromptHistoryItem failed: %v", err)
	}
	if item.Index != 4 {
		t.Errorf("Expected index 4, got %d", item.Index)
	}

	if _, err := c.GetPromptHistoryItem(context.Background(), "missing"); !errors.Is(err, ErrPromptNotFound) {
		t.Errorf("Expected ErrPromptNotFound, got %v", err)
	}
}

func TestGetPromptHistoryServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": {"type": "internal", "message": "history unavailable"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).GetPromptHistoryByID(context.Background())
	if err == nil || !strings.Contains(err.Error(), "history unavailable") {
		t.Errorf("Expected server error message, got %v", err)
	}
}

func TestWatchCompleted(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" || r.URL.Query().Get("clientId") == "" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		messages := []string{
			`{"type": "status", "data": {"status": {"exec_info": {"queue_remaining": 1}}}}`,
			`{"type": "execution_start", "data": {"prompt_id": "p1"}}`,
			`{"type": "executing", "data": {"node": "3", "prompt_id": "p1"}}`,
			`{"type": "progress", "data": {"value": 1, "max": 20}}`,
			`{"type": "executing", "data": {"node": null, "prompt_id": "p1"}}`,
			`{"type": "execution_success", "data": {"prompt_id": "p1", "timestamp": 1}}`,
			`{"type": "crystools.monitor", "data": {}}`,
			`{"type": "execution_error", "data": {"prompt_id": "p2", "node_id": "5", "node_type": "VAEDecode", "exception_message": "oom"}}`,
			`{"type": "execution_success", "data": {"prompt_id": "p3", "timestamp": 2}}`,
		}
		conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3})
		for _, m := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ids := make(chan string, 10)
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.WatchCompleted(ctx, func(promptID string) { ids <- promptID })
	}()

	got := make([]string, 0)
	for len(got) < 2 {
		select {
		case id := <-ids:
			got = append(got, id)
		case <-time.After(5 * time.Second):
			t.Fatalf("Timed out waiting for completions, got %v", got)
		}
	}
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("WatchCompleted did not return after cancel")
	}

	if diff := cmp.Diff([]string{"p1", "p3"}, got); diff != "" {
		t.Errorf("Completions mismatch (-want +got):\n%s", diff)
	}
	select {
	case extra := <-ids:
		t.Errorf("Unexpected extra completion %q", extra)
	default:
	}
}

func TestWebSocketGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := newTestClient(t, srv)
	ws := &WebSocketConnection{
		WebSocketURL: c.wsURL(),
		MaxRetry:     2,
		BaseDelay:    time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}
	err := ws.Run(context.Background(), func([]byte) {})
	if err == nil || !strings.Contains(err.Error(), "maximum number of retries") {
		t.Errorf("Expected retry error, got %v", err)
	}
}

func TestWebSocketBacksOffAfterDroppedConnection(t *testing.T) {
	var dials atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dials.Add(1)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	ws := &WebSocketConnection{
		WebSocketURL: c.wsURL(),
		MaxRetry:     3,
		BaseDelay:    20 * time.Millisecond,
		MaxDelay:     40 * time.Millisecond,
	}

	start := time.Now()
	err := ws.Run(context.Background(), func([]byte) {})
	elapsed := time.Since(start)

	if err == nil || !strings.Contains(err.Error(), "maximum number of retries") {
		t.Errorf("Expected retry error, got %v", err)
	}
	if got := dials.Load(); got != 4 {
		t.Errorf("Expected 4 connections before giving up, got %d", got)
	}
	// 20ms + 40ms + 40ms of backoff between the four connections
	if elapsed < 100*time.Millisecond {
		t.Errorf("Expected reconnects to back off, finished in %v", elapsed)
	}
}
