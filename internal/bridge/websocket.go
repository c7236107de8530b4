package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 5 * time.Second

// Signal is a message from the host.
type Signal struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// Command is a message to the host.
type Command struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// WebSocketClient is one connection to the host. Reads happen on a single
// goroutine; writes are serialized.
type WebSocketClient struct {
	url    string
	token  string
	logger *slog.Logger

	wmu  sync.Mutex
	conn *websocket.Conn
}

func NewWebSocketClient(serverURL, token string, logger *slog.Logger) *WebSocketClient {
	return &WebSocketClient{url: serverURL, token: token, logger: logger}
}

func (c *WebSocketClient) Connect(ctx context.Context) error {
	u, err := url.Parse(c.url)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if c.token != "" {
		q := u.Query()
		q.Set("token", c.token)
		u.RawQuery = q.Encode()
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	c.wmu.Lock()
	c.conn = conn
	c.wmu.Unlock()
	c.logger.Info("bridge connected", "url", c.url)
	return nil
}

func (c *WebSocketClient) ReadSignal() (*Signal, error) {
	c.wmu.Lock()
	conn := c.conn
	c.wmu.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("not connected")
	}

	var s Signal
	if err := conn.ReadJSON(&s); err != nil {
		return nil, fmt.Errorf("failed to read signal: %w", err)
	}
	c.logger.Debug("bridge signal", "type", s.Type)
	return &s, nil
}

func (c *WebSocketClient) WriteCommand(cmd *Command) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("failed to write command: %w", err)
	}
	return nil
}

func (c *WebSocketClient) Close() error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.conn == nil {
		return nil
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	err := c.conn.Close()
	c.conn = nil
	return err
}
