package converse

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataquay/dataquay/internal/log"
	"github.com/dataquay/dataquay/internal/model"
	"github.com/dataquay/dataquay/internal/tools"
)

func newTestLoop(t *testing.T, client model.Client, registry *tools.Registry, maxRounds int) *Loop {
	t.Helper()
	if registry == nil {
		registry = tools.NewRegistry(log.NewNop())
	}
	loop, err := NewLoop(LoopConfig{
		Client:    client,
		Registry:  registry,
		MaxRounds: maxRounds,
		Logger:    log.NewNop(),
	})
	require.NoError(t, err)
	return loop
}

func TestLoop_SingleRoundWithoutTools(t *testing.T) {
	t.Parallel()

	client := &scriptClient{rounds: []scriptRound{textRound("  the answer  ")}}
	loop := newTestLoop(t, client, nil, 0)
	sender := &recordSender{}

	text, err := loop.Run(context.Background(), tools.Invocation{}, []model.Message{model.NewUserMessage("hi")}, false, sender)
	require.NoError(t, err)

	assert.Equal(t, "the answer", text)
	assert.Len(t, client.requests, 1)
	assert.Equal(t, []string{"  the answer  "}, sender.fragments)
	assert.Empty(t, sender.running)
}

func TestLoop_ToolRoundTripAppendsOutcomes(t *testing.T) {
	t.Parallel()

	echo := &echoTool{name: "web_search"}
	registry := tools.NewRegistry(log.NewNop(), echo)
	client := &scriptClient{rounds: []scriptRound{
		toolRound("checking",
			model.ToolRequest{ID: "tu_1", Name: "web_search", Input: json.RawMessage(`{"query": "a"}`)},
			model.ToolRequest{ID: "tu_2", Name: "web_search", Input: json.RawMessage(`{"query": "b"}`)},
		),
		textRound("final answer"),
	}}
	loop := newTestLoop(t, client, registry, 0)
	sender := &recordSender{}

	text, err := loop.Run(context.Background(), tools.Invocation{}, []model.Message{model.NewUserMessage("hi")}, true, sender)
	require.NoError(t, err)
	assert.Equal(t, "final answer", text)

	// Both requests executed in order.
	require.Len(t, echo.calls, 2)
	assert.JSONEq(t, `{"query": "a"}`, string(echo.calls[0]))
	assert.JSONEq(t, `{"query": "b"}`, string(echo.calls[1]))

	// The second model call sees the assistant message and the outcomes.
	require.Len(t, client.requests, 2)
	history := client.requests[1].Messages
	require.Len(t, history, 3)
	assert.Equal(t, model.RoleAssistant, history[1].Role)
	require.Len(t, history[2].Content, 2)
	assert.Equal(t, "tu_1", history[2].Content[0].ToolResult.RequestID)
	assert.Equal(t, "tu_2", history[2].Content[1].ToolResult.RequestID)

	// Tool progress was announced once each way.
	require.Len(t, sender.running, 1)
	require.Len(t, sender.finished, 1)
	assert.Len(t, sender.finished[0], 2)
}

func TestLoop_ToolFailureFoldedIntoOutcome(t *testing.T) {
	t.Parallel()

	broken := &echoTool{name: "code_interpreter", failWith: errors.New("sandbox unavailable")}
	registry := tools.NewRegistry(log.NewNop(), broken)
	client := &scriptClient{rounds: []scriptRound{
		toolRound("", model.ToolRequest{ID: "tu_1", Name: "code_interpreter", Input: json.RawMessage(`{}`)}),
		textRound("recovered"),
	}}
	loop := newTestLoop(t, client, registry, 0)
	sender := &recordSender{}

	text, err := loop.Run(context.Background(), tools.Invocation{}, []model.Message{model.NewUserMessage("hi")}, true, sender)
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)

	require.Len(t, sender.finished, 1)
	require.Len(t, sender.finished[0], 1)
	assert.Equal(t, "sandbox unavailable", sender.finished[0][0].Err)
}

func TestLoop_RoundCeiling(t *testing.T) {
	t.Parallel()

	echo := &echoTool{name: "web_search"}
	registry := tools.NewRegistry(log.NewNop(), echo)

	// Every round requests another tool call.
	greedy := toolRound("", model.ToolRequest{ID: "tu", Name: "web_search", Input: json.RawMessage(`{}`)})
	client := &scriptClient{rounds: []scriptRound{greedy, greedy, greedy, greedy}}
	loop := newTestLoop(t, client, registry, 3)
	sender := &recordSender{}

	_, err := loop.Run(context.Background(), tools.Invocation{}, []model.Message{model.NewUserMessage("hi")}, true, sender)
	require.ErrorIs(t, err, ErrRoundLimit)
	assert.Len(t, client.requests, 3)
}

func TestLoop_StreamErrorIsFatal(t *testing.T) {
	t.Parallel()

	transport := errors.New("connection reset")
	client := &scriptClient{rounds: []scriptRound{{
		events: []model.Event{{Kind: model.EventTextDelta, Fragment: "par"}},
		err:    transport,
	}}}
	loop := newTestLoop(t, client, nil, 0)

	_, err := loop.Run(context.Background(), tools.Invocation{}, []model.Message{model.NewUserMessage("hi")}, false, &recordSender{})
	require.ErrorIs(t, err, transport)
}

func TestLoop_TruncatedStreamIsFatal(t *testing.T) {
	t.Parallel()

	// Stream ends without a MessageEnd event.
	client := &scriptClient{rounds: []scriptRound{{
		events: []model.Event{{Kind: model.EventTextDelta, Fragment: "half"}},
	}}}
	loop := newTestLoop(t, client, nil, 0)

	_, err := loop.Run(context.Background(), tools.Invocation{}, []model.Message{model.NewUserMessage("hi")}, false, &recordSender{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without message stop")
}

func TestLoop_DeclarationsFollowFlag(t *testing.T) {
	t.Parallel()

	echo := &echoTool{name: "web_search"}
	registry := tools.NewRegistry(log.NewNop(), echo)

	t.Run("declared", func(t *testing.T) {
		t.Parallel()
		client := &scriptClient{rounds: []scriptRound{textRound("ok")}}
		loop := newTestLoop(t, client, registry, 0)
		_, err := loop.Run(context.Background(), tools.Invocation{}, []model.Message{model.NewUserMessage("hi")}, true, &recordSender{})
		require.NoError(t, err)
		require.Len(t, client.requests, 1)
		assert.Len(t, client.requests[0].Tools, 1)
	})

	t.Run("undeclared", func(t *testing.T) {
		t.Parallel()
		client := &scriptClient{rounds: []scriptRound{textRound("ok")}}
		loop := newTestLoop(t, client, registry, 0)
		_, err := loop.Run(context.Background(), tools.Invocation{}, []model.Message{model.NewUserMessage("hi")}, false, &recordSender{})
		require.NoError(t, err)
		require.Len(t, client.requests, 1)
		assert.Empty(t, client.requests[0].Tools)
	})
}

func TestLoop_DoesNotMutateCallerHistory(t *testing.T) {
	t.Parallel()

	client := &scriptClient{rounds: []scriptRound{textRound("ok")}}
	loop := newTestLoop(t, client, nil, 0)

	messages := make([]model.Message, 1, 4)
	messages[0] = model.NewUserMessage("hi")

	_, err := loop.Run(context.Background(), tools.Invocation{}, messages, false, &recordSender{})
	require.NoError(t, err)
	assert.Len(t, messages, 1)
}
