package converse

import (
	"context"
	"encoding/json"
	"errors"
	"iter"

	"github.com/dataquay/dataquay/internal/model"
	"github.com/dataquay/dataquay/internal/tools"
)

// scriptRound is one scripted model call: the events to yield, then an
// optional terminal error.
type scriptRound struct {
	events []model.Event
	err    error
}

// scriptClient plays back one scripted round per Converse call and records
// every request it receives.
type scriptClient struct {
	rounds   []scriptRound
	requests []model.Request
}

func (c *scriptClient) Converse(_ context.Context, req model.Request) iter.Seq2[model.Event, error] {
	call := len(c.requests)
	c.requests = append(c.requests, req)
	return func(yield func(model.Event, error) bool) {
		if call >= len(c.rounds) {
			yield(model.Event{}, errors.New("unscripted model call"))
			return
		}
		round := c.rounds[call]
		for _, ev := range round.events {
			if !yield(ev, nil) {
				return
			}
		}
		if round.err != nil {
			yield(model.Event{}, round.err)
		}
	}
}

// textRound scripts a plain text answer.
func textRound(text string) scriptRound {
	return scriptRound{events: []model.Event{
		{Kind: model.EventTextDelta, Fragment: text},
		{Kind: model.EventMessageEnd},
	}}
}

// toolRound scripts an answer that requests the given tools.
func toolRound(text string, reqs ...model.ToolRequest) scriptRound {
	events := []model.Event{{Kind: model.EventTextDelta, Fragment: text}}
	for _, req := range reqs {
		events = append(events,
			model.Event{Kind: model.EventToolUseStart, ID: req.ID, Name: req.Name},
			model.Event{Kind: model.EventToolUseDelta, ID: req.ID, Fragment: string(req.Input)},
			model.Event{Kind: model.EventToolUseEnd, ID: req.ID},
		)
	}
	events = append(events, model.Event{Kind: model.EventMessageEnd})
	return scriptRound{events: events}
}

// recordSender records everything sent through it.
type recordSender struct {
	heartbeats int
	fragments  []string
	errs       []string
	running    [][]model.ToolRequest
	finished   [][]model.ToolOutcome
	loops      []bool
}

func (s *recordSender) SendHeartbeat() error { s.heartbeats++; return nil }

func (s *recordSender) SendText(fragment string) error {
	s.fragments = append(s.fragments, fragment)
	return nil
}

func (s *recordSender) SendError(message string) error {
	s.errs = append(s.errs, message)
	return nil
}

func (s *recordSender) SendToolRunning(requests []model.ToolRequest) error {
	s.running = append(s.running, requests)
	return nil
}

func (s *recordSender) SendToolFinished(outcomes []model.ToolOutcome) error {
	s.finished = append(s.finished, outcomes)
	return nil
}

func (s *recordSender) SendLoop(final bool) error {
	s.loops = append(s.loops, final)
	return nil
}

// echoTool returns its input back as output, or fails when failWith is set.
type echoTool struct {
	name     string
	failWith error
	calls    []json.RawMessage
}

func (t *echoTool) Name() string                { return t.name }
func (t *echoTool) Description() string         { return "echoes its input" }
func (t *echoTool) InputSchema() map[string]any { return map[string]any{"properties": map[string]any{}} }

func (t *echoTool) Call(_ context.Context, _ tools.Invocation, input json.RawMessage) (any, error) {
	t.calls = append(t.calls, input)
	if t.failWith != nil {
		return nil, t.failWith
	}
	return string(input), nil
}
