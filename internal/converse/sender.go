// Package converse implements the conversation-turn orchestrator: the
// tool-execution loop over the streaming model client, the intent router
// that turns a user request into a query and a visualization, and the turn
// controller that ties them to the transport boundary.
package converse

import "github.com/dataquay/dataquay/internal/model"

// Sender is the outbound channel to the end user. The core consumes this
// capability; transports (SSE, WebSocket) implement it. Implementations are
// called from a single turn's control flow and need not be thread-safe.
type Sender interface {
	// SendHeartbeat acknowledges a heartbeat event.
	SendHeartbeat() error

	// SendText delivers one streamed text fragment as soon as it is decoded.
	SendText(fragment string) error

	// SendError delivers a user-visible error message.
	SendError(message string) error

	// SendToolRunning announces that the round's tool requests are executing.
	SendToolRunning(requests []model.ToolRequest) error

	// SendToolFinished announces the collected outcomes of the round.
	SendToolFinished(outcomes []model.ToolOutcome) error

	// SendLoop signals the end of a model exchange; final marks the end of
	// the whole turn.
	SendLoop(final bool) error
}
