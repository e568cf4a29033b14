// Package model defines the conversation data model and the streaming
// client abstraction for the generative-response service.
//
// A conversation is an ordered, append-only sequence of Messages owned by a
// single turn. Messages are immutable once appended; tool requests collected
// in one model call must all receive outcomes before the next call includes
// them in history.
package model

import "encoding/json"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a conversation.
type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ContentBlock is a tagged variant: exactly one of Text, ToolUse or
// ToolResult is set.
type ContentBlock struct {
	Text       string       `json:"text,omitempty"`
	ToolUse    *ToolRequest `json:"tool_use,omitempty"`
	ToolResult *ToolOutcome `json:"tool_result,omitempty"`
}

// ToolRequest is the model's request to invoke a named tool. The ID is an
// opaque token, unique within a turn, used to correlate the outcome.
type ToolRequest struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolOutcome is the result of executing one ToolRequest. A failed execution
// carries Err instead of Output; it is fed back to the model, never raised.
type ToolOutcome struct {
	RequestID string `json:"request_id"`
	Output    any    `json:"output,omitempty"`
	Err       string `json:"error,omitempty"`
}

// Failed reports whether the tool execution produced an error payload.
func (o ToolOutcome) Failed() bool {
	return o.Err != ""
}

// ToolSpec declares a tool to the model.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// NewUserMessage creates a user message with a single text block.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: []ContentBlock{{Text: text}}}
}

// NewAssistantMessage creates an assistant message from the round's text and
// tool requests, in that order. An empty text produces no text block.
func NewAssistantMessage(text string, requests []ToolRequest) Message {
	blocks := make([]ContentBlock, 0, len(requests)+1)
	if text != "" {
		blocks = append(blocks, ContentBlock{Text: text})
	}
	for i := range requests {
		blocks = append(blocks, ContentBlock{ToolUse: &requests[i]})
	}
	return Message{Role: RoleAssistant, Content: blocks}
}

// NewToolResultMessage creates the user message carrying all tool outcomes
// of a round, in request order.
func NewToolResultMessage(outcomes []ToolOutcome) Message {
	blocks := make([]ContentBlock, len(outcomes))
	for i := range outcomes {
		blocks[i] = ContentBlock{ToolResult: &outcomes[i]}
	}
	return Message{Role: RoleUser, Content: blocks}
}

// Text concatenates all text blocks of the message.
func (m Message) Text() string {
	var s string
	for _, b := range m.Content {
		s += b.Text
	}
	return s
}

// ToolRequests returns the tool-use blocks of the message in order.
func (m Message) ToolRequests() []ToolRequest {
	var reqs []ToolRequest
	for _, b := range m.Content {
		if b.ToolUse != nil {
			reqs = append(reqs, *b.ToolUse)
		}
	}
	return reqs
}
