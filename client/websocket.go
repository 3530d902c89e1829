package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/gorilla/websocket"
)

type WebSocketConnection struct {
	WebSocketURL string
	MaxRetry     int // consecutive failed connection attempts before giving up, negative for no limit
	RetryCount   int

	// Exponential backoff configuration
	BaseDelay time.Duration // The initial delay, e.g., 1 second
	MaxDelay  time.Duration // The maximum delay, e.g., 1 minute
	Dialer    websocket.Dialer
}

// Run connects to the websocket and hands every text message to onMessage.
// Failed dials and dropped connections are retried with exponential backoff;
// the retry count is reset once a connection delivers a message.
// Run returns ctx.Err() once ctx is done.
func (w *WebSocketConnection) Run(ctx context.Context, onMessage func([]byte)) error {
	for {
		conn, _, err := w.Dialer.DialContext(ctx, w.WebSocketURL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("Connection attempt failed: ", "error", err)
			if w.MaxRetry >= 0 && w.RetryCount >= w.MaxRetry {
				return fmt.Errorf("maximum number of retries reached (%d): %w", w.MaxRetry, err)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.getReconnectDelay()):
			}
			continue
		}

		received := w.handleMessages(ctx, conn, onMessage)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if received {
			w.RetryCount = 0
		}
		if w.MaxRetry >= 0 && w.RetryCount >= w.MaxRetry {
			return fmt.Errorf("maximum number of retries reached (%d): connection closed by server", w.MaxRetry)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.getReconnectDelay()):
		}
	}
}

// Handle incoming WebSocket messages until the connection drops or ctx ends.
// Reports whether any message was read.
func (w *WebSocketConnection) handleMessages(ctx context.Context, conn *websocket.Conn, onMessage func([]byte)) bool {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	received := false
	for {
		msgType, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, websocket.ErrCloseSent) {
				slog.Warn(fmt.Sprintf("Read error: %v", err))
			}
			return received
		}
		received = true
		// binary messages are preview images
		if msgType != websocket.TextMessage {
			continue
		}
		onMessage(message)
	}
}

// exponential backoff calculation
func (w *WebSocketConnection) getReconnectDelay() time.Duration {
	// Calculate the delay as BaseDelay * 2^(RetryCount), capped at MaxDelay
	delay := w.BaseDelay * time.Duration(math.Pow(2, float64(w.RetryCount)))
	if w.MaxDelay > 0 && delay > w.MaxDelay {
		delay = w.MaxDelay
	}
	w.RetryCount++ // Increment the retry counter for the next attempt
	return delay
}
