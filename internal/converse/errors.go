package converse

import "errors"

// Sentinel errors for turn validation and loop control. All of them are
// caught at the turn-controller boundary and reported through the sender;
// they never cross the transport.
var (
	// ErrSessionRequired indicates the inbound event has no session id.
	ErrSessionRequired = errors.New("session ID is required")

	// ErrUnknownEvent indicates an event type that is neither HEARTBEAT
	// nor CONVERSE.
	ErrUnknownEvent = errors.New("unknown event type")

	// ErrInvalidQuery indicates the generated statement is not a valid SQL
	// command.
	ErrInvalidQuery = errors.New("generated query is not a valid SQL command")

	// ErrRoundLimit indicates the tool-execution loop reached its round
	// ceiling without the model finishing its answer.
	ErrRoundLimit = errors.New("tool loop exceeded maximum rounds")

	// ErrQueryFailed indicates the query pipeline produced no result; the
	// underlying cause has already been logged by the pipeline.
	ErrQueryFailed = errors.New("failed to execute query")
)
