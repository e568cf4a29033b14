package model

import (
	"context"
	"iter"
)

// EventKind discriminates stream events emitted by a model call.
type EventKind int

const (
	// EventTextDelta carries a fragment of assistant text.
	EventTextDelta EventKind = iota

	// EventToolUseStart opens a tool-use block with its id and tool name.
	EventToolUseStart

	// EventToolUseDelta carries a fragment of the tool's argument payload.
	// Fragments for a given id concatenate in arrival order.
	EventToolUseDelta

	// EventToolUseEnd closes a tool-use block; the argument payload is
	// complete and may be parsed.
	EventToolUseEnd

	// EventMessageEnd terminates the stream for this call.
	EventMessageEnd
)

// Event is one element of the ordered stream produced by a model call.
type Event struct {
	Kind EventKind

	// ID identifies the tool-use block for ToolUseStart/Delta/End events.
	ID string

	// Name is the tool name, set on ToolUseStart only.
	Name string

	// Fragment is the text delta or tool-argument delta payload.
	Fragment string
}

// Request describes one call to the generative-response service.
type Request struct {
	System      []string
	Messages    []Message
	Tools       []ToolSpec
	MaxTokens   int64
	Temperature float64
}

// Client is the streaming interface to the generative-response service.
//
// Converse yields the ordered event stream for one call. A non-nil error
// terminates the sequence and is fatal to the call (transport failure);
// consumers must stop iterating once an error is yielded. The sequence is
// finite and non-restartable.
type Client interface {
	Converse(ctx context.Context, req Request) iter.Seq2[Event, error]
}
