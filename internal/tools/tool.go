// Package tools provides the tool abstraction and registry for the
// conversation orchestrator. Tools are external capabilities the model may
// request mid-response; the registry executes them and folds failures into
// outcomes the model can see.
package tools

import (
	"context"
	"encoding/json"
)

// Invocation is the execution context passed to every tool call.
type Invocation struct {
	UserID    string
	SessionID string
}

// Tool is one invocable capability.
//
// Call receives the raw argument payload assembled from the stream; an
// empty object means the model supplied no (or malformed) arguments.
type Tool interface {
	// Name returns the unique identifier of the tool.
	Name() string

	// Description tells the model when to call the tool.
	Description() string

	// InputSchema returns the JSON-schema declaration of the arguments.
	InputSchema() map[string]any

	// Call executes the tool.
	Call(ctx context.Context, inv Invocation, input json.RawMessage) (any, error)
}
