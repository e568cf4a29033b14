package model

import (
	"encoding/json"
	"strings"
)

// emptyArgs is the input recorded for a tool request whose argument payload
// did not parse as JSON. Callers treat it as an empty-args call; a malformed
// payload must never abort the stream.
var emptyArgs = json.RawMessage("{}")

// Accumulator materializes one model call's stream: incremental text plus
// the finalized tool requests assembled from possibly-fragmented argument
// payloads.
//
// Each event is processed exactly once, in order, with no backward seeking.
// The accumulator is transient per call: create one per stream and discard
// it after MessageEnd.
type Accumulator struct {
	text strings.Builder
	// open tool-use blocks keyed by request id; order preserves arrival.
	order []string
	args  map[string]*strings.Builder
	names map[string]string
	reqs  []ToolRequest
	done  bool
}

// NewAccumulator creates an empty accumulator for a single model call.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		args:  make(map[string]*strings.Builder),
		names: make(map[string]string),
	}
}

// Push consumes the next stream event and returns any text fragment that
// became available, so callers can forward it before the stream completes.
// Events after MessageEnd are ignored.
func (a *Accumulator) Push(ev Event) string {
	if a.done {
		return ""
	}
	switch ev.Kind {
	case EventTextDelta:
		a.text.WriteString(ev.Fragment)
		return ev.Fragment
	case EventToolUseStart:
		if _, seen := a.args[ev.ID]; !seen {
			a.order = append(a.order, ev.ID)
			a.args[ev.ID] = &strings.Builder{}
		}
		a.names[ev.ID] = ev.Name
	case EventToolUseDelta:
		if buf, ok := a.args[ev.ID]; ok {
			buf.WriteString(ev.Fragment)
		}
	case EventToolUseEnd:
		a.finalize(ev.ID)
	case EventMessageEnd:
		// Close any block the stream left open.
		for _, id := range a.order {
			a.finalize(id)
		}
		a.done = true
	}
	return ""
}

// finalize parses the accumulated argument payload for id and records the
// completed request. Argument payloads are parsed only here, never mid-stream.
func (a *Accumulator) finalize(id string) {
	buf, ok := a.args[id]
	if !ok {
		return
	}
	delete(a.args, id)

	input := emptyArgs
	if raw := buf.String(); raw != "" && json.Valid([]byte(raw)) {
		input = json.RawMessage(raw)
	}
	a.reqs = append(a.reqs, ToolRequest{
		ID:    id,
		Name:  a.names[id],
		Input: input,
	})
}

// Done reports whether MessageEnd has been observed.
func (a *Accumulator) Done() bool {
	return a.done
}

// Text returns the full accumulated assistant text.
func (a *Accumulator) Text() string {
	return a.text.String()
}

// Requests returns the finalized tool requests in stream order.
func (a *Accumulator) Requests() []ToolRequest {
	return a.reqs
}
