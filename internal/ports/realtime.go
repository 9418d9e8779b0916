package ports

import "context"

// AgentRole identifies one of the four conversational agents in a voice
// session.
type AgentRole string

const (
	AgentIntent   AgentRole = "intent"
	AgentSpread   AgentRole = "spread"
	AgentReading  AgentRole = "reading"
	AgentFollowup AgentRole = "followup"
)

// ToolCall is an agent-initiated tool invocation delivered by the runtime.
// Args is the decoded JSON argument object.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// Event is a message from the realtime runtime to the orchestrator.
type Event interface{ realtimeEvent() }

// ToolCallEvent carries an agent tool invocation awaiting a result.
type ToolCallEvent struct {
	Call ToolCall
}

func (ToolCallEvent) realtimeEvent() {}

// HandoffEvent signals a framework-automatic agent handoff.
type HandoffEvent struct {
	To AgentRole
}

func (HandoffEvent) realtimeEvent() {}

// DisconnectedEvent signals the channel closed; Err is nil on a clean close.
type DisconnectedEvent struct {
	Err error
}

func (DisconnectedEvent) realtimeEvent() {}

// ConnectOptions configures the realtime channel at session setup.
type ConnectOptions struct {
	// AutoHandoffs maps an agent to the agent the runtime hands off to
	// automatically when the source agent completes its task. Declared once,
	// at setup.
	AutoHandoffs map[AgentRole]AgentRole
}

// RealtimeChannel is the external realtime agent runtime boundary: an
// audio/control channel the orchestrator drives and observes.
type RealtimeChannel interface {
	// Connect opens the channel using a short-lived credential.
	Connect(ctx context.Context, token string, opts ConnectOptions) error

	// SwapAgent performs a manual transition of the active agent.
	SwapAgent(ctx context.Context, role AgentRole) error

	// SendText injects a synthetic text line into the conversation.
	SendText(ctx context.Context, text string) error

	// SetMuted mutes or unmutes the outbound audio channel.
	SetMuted(muted bool) error

	// Events delivers tool calls, handoffs and disconnects. The channel is
	// closed after a DisconnectedEvent.
	Events() <-chan Event

	// ToolResult completes a tool call with a JSON-marshalable result.
	ToolResult(ctx context.Context, callID string, result any) error

	// ToolError fails a tool call.
	ToolError(ctx context.Context, callID string, err error) error

	Close() error
}

// TokenIssuer mints the short-lived credential a realtime channel connects
// with.
type TokenIssuer interface {
	IssueToken(ctx context.Context) (string, error)
}
