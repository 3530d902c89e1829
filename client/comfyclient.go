package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ComfyClient reads prompt history from a ComfyUI server and follows its execution feed
type ComfyClient struct {
	serverBaseAddress     string
	serverAddress         string
	serverPort            int
	protocol              string
	clientid              string
	lastProcessedPromptID string
	httpclient            *http.Client
}

// NewComfyClient creates a new instance of a ComfyUI client. protocol is "http" or "https".
func NewComfyClient(server_address string, server_port int, protocol string) *ComfyClient {
	if protocol == "" {
		protocol = "http"
	}
	sbaseaddr := server_address + ":" + strconv.Itoa(server_port)
	cid := uuid.New().String()
	retv := &ComfyClient{
		serverBaseAddress: sbaseaddr,
		serverAddress:     server_address,
		serverPort:        server_port,
		protocol:          protocol,
		clientid:          cid,
		httpclient:        &http.Client{Timeout: 30 * time.Second},
	}
	return retv
}

// ClientID returns the unique client ID used for the websocket session
func (c *ComfyClient) ClientID() string {
	return c.clientid
}

// return the underlying http client
func (c *ComfyClient) HttpClient() *http.Client {
	return c.httpclient
}

// set the underlying http client
func (c *ComfyClient) SetHttpClient(client *http.Client) {
	c.httpclient = client
}

func (c *ComfyClient) httpURL(path string) string {
	return c.protocol + "://" + c.serverBaseAddress + path
}

func (c *ComfyClient) wsURL() string {
	scheme := "ws"
	if c.protocol == "https" {
		scheme = "wss"
	}
	return scheme + "://" + c.serverBaseAddress + "/ws?clientId=" + c.clientid
}

// WatchCompleted follows the server's websocket feed and calls fn with the id of every
// prompt that finishes executing. It reconnects with exponential backoff and returns
// when ctx is done or the connection cannot be re-established.
func (c *ComfyClient) WatchCompleted(ctx context.Context, fn func(promptID string)) error {
	ws := &WebSocketConnection{
		WebSocketURL: c.wsURL(),
		MaxRetry:     5,
		BaseDelay:    time.Second,
		MaxDelay:     time.Minute,
	}
	return ws.Run(ctx, func(msg []byte) {
		c.onWebSocketMessage(msg, fn)
	})
}

// onWebSocketMessage translates a status message into a completion callback.
// ComfyUI signals the end of a prompt with an "executing" message whose node is null and,
// on newer servers, an "execution_success" message; each prompt is reported once.
func (c *ComfyClient) onWebSocketMessage(msg []byte, fn func(promptID string)) {
	message := &WSStatusMessage{}
	err := json.Unmarshal(msg, &message)
	if err != nil {
		slog.Error("Deserializing Status Message:", "error", err)
		return
	}

	finished := func(promptID string) {
		if promptID == "" || promptID == c.lastProcessedPromptID {
			return
		}
		c.lastProcessedPromptID = promptID
		fn(promptID)
	}

	switch message.Type {
	case "executing":
		s := message.Data.(*WSMessageDataExecuting)
		if s.Node == nil {
			finished(s.PromptID)
		}
	case "execution_success":
		s := message.Data.(*WSMessageDataExecutionSuccess)
		finished(s.PromptID)
	case "execution_error":
		s := message.Data.(*WSMessageExecutionError)
		slog.Warn("prompt failed", "prompt id", s.PromptID, "node", s.Node, "node type", s.NodeType, "exception", s.ExceptionMessage)
	case "execution_interrupted":
		s := message.Data.(*WSMessageExecutionInterrupted)
		slog.Info("prompt interrupted", "prompt id", s.PromptID)
	case "status", "execution_start", "execution_cached", "progress", "executed":
	default:
		slog.Debug("Unhandled message type: ", "type", message.Type)
	}
}
