// Package realtime is the websocket adapter for the external realtime agent
// runtime.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/dungdc40/tarot-nextjs-sub000/internal/ports"
)

// Channel implements ports.RealtimeChannel over a websocket control
// connection.
type Channel struct {
	url    string
	logger *slog.Logger

	conn    *websocket.Conn
	writeMu sync.Mutex

	events    chan ports.Event
	closeOnce sync.Once
	done      chan struct{}
}

func NewChannel(url string, logger *slog.Logger) *Channel {
	return &Channel{
		url:    url,
		logger: logger,
		events: make(chan ports.Event, 16),
		done:   make(chan struct{}),
	}
}

// wire shapes for the control protocol.
type outboundMsg struct {
	Type    string            `json:"type"`
	Agent   string            `json:"agent,omitempty"`
	Text    string            `json:"text,omitempty"`
	Muted   *bool             `json:"muted,omitempty"`
	CallID  string            `json:"call_id,omitempty"`
	Output  json.RawMessage   `json:"output,omitempty"`
	Error   string            `json:"error,omitempty"`
	Handoff map[string]string `json:"handoffs,omitempty"`
}

type inboundMsg struct {
	Type      string `json:"type"`
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	To        string `json:"to"`
	Message   string `json:"message"`
}

func (c *Channel) Connect(ctx context.Context, token string, opts ports.ConnectOptions) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.url, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial realtime (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("dial realtime: %w", err)
	}
	c.conn = conn

	if len(opts.AutoHandoffs) > 0 {
		handoffs := make(map[string]string, len(opts.AutoHandoffs))
		for from, to := range opts.AutoHandoffs {
			handoffs[string(from)] = string(to)
		}
		if err := c.write(outboundMsg{Type: "session.handoffs", Handoff: handoffs}); err != nil {
			_ = conn.Close()
			return fmt.Errorf("declare handoffs: %w", err)
		}
	}

	go c.readLoop()
	return nil
}

func (c *Channel) readLoop() {
	defer close(c.events)
	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.events <- ports.DisconnectedEvent{}
			} else {
				c.events <- ports.DisconnectedEvent{Err: err}
			}
			return
		}

		var msg inboundMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("bad realtime message", "error", err)
			continue
		}

		switch msg.Type {
		case "tool.call":
			args := map[string]any{}
			if msg.Arguments != "" {
				if err := json.Unmarshal([]byte(msg.Arguments), &args); err != nil {
					c.logger.Warn("bad tool arguments", "tool", msg.Name, "error", err)
					continue
				}
			}
			c.events <- ports.ToolCallEvent{Call: ports.ToolCall{ID: msg.CallID, Name: msg.Name, Args: args}}
		case "agent.handoff":
			c.events <- ports.HandoffEvent{To: ports.AgentRole(msg.To)}
		default:
			// Audio and transcript frames are handled by the client side.
		}
	}
}

func (c *Channel) SwapAgent(_ context.Context, role ports.AgentRole) error {
	return c.write(outboundMsg{Type: "session.agent", Agent: string(role)})
}

func (c *Channel) SendText(_ context.Context, text string) error {
	return c.write(outboundMsg{Type: "conversation.text", Text: text})
}

func (c *Channel) SetMuted(muted bool) error {
	return c.write(outboundMsg{Type: "audio.mute", Muted: &muted})
}

func (c *Channel) Events() <-chan ports.Event { return c.events }

func (c *Channel) ToolResult(_ context.Context, callID string, result any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal tool result: %w", err)
	}
	return c.write(outboundMsg{Type: "tool.output", CallID: callID, Output: raw})
}

func (c *Channel) ToolError(_ context.Context, callID string, toolErr error) error {
	return c.write(outboundMsg{Type: "tool.error", CallID: callID, Error: toolErr.Error()})
}

func (c *Channel) write(msg outboundMsg) error {
	if c.conn == nil {
		return fmt.Errorf("channel not connected")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			c.writeMu.Lock()
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			c.writeMu.Unlock()
			err = c.conn.Close()
		}
	})
	return err
}
