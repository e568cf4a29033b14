package converse

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dataquay/dataquay/internal/log"
	"github.com/dataquay/dataquay/internal/model"
	"github.com/dataquay/dataquay/internal/tools"
)

// DefaultMaxRounds bounds the tool-call cycle of a single turn. A model that
// keeps requesting tools ends the turn with ErrRoundLimit instead of looping
// forever.
const DefaultMaxRounds = 8

// defaultMaxTokens mirrors the inference configuration of the upstream
// service contract.
const defaultMaxTokens = 4096

// systemPreamble is the fixed system instruction list sent on every call.
var systemPreamble = []string{
	"You are a data assistant. Answer precisely and concisely.",
	"When you produce an HTML artifact, wrap it in <x-artifact> tags and do not repeat its content outside the tags.",
}

// Loop owns one conversation's round-trip lifecycle with the model: call,
// drain the stream, execute requested tools, append outcomes, re-enter.
// It terminates when a round produces no tool request.
//
// Loop is read-only after construction and safe to share across turns; the
// message history of each Run invocation is owned by that invocation alone.
type Loop struct {
	client      model.Client
	registry    *tools.Registry
	maxRounds   int
	temperature float64
	logger      log.Logger
}

// LoopConfig contains the Loop's dependencies.
type LoopConfig struct {
	Client      model.Client
	Registry    *tools.Registry
	MaxRounds   int // zero = DefaultMaxRounds
	Temperature float64
	Logger      log.Logger
}

// NewLoop creates a Loop.
func NewLoop(cfg LoopConfig) (*Loop, error) {
	if cfg.Client == nil {
		return nil, errors.New("model client is required")
	}
	if cfg.Registry == nil {
		return nil, errors.New("tool registry is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	return &Loop{
		client:      cfg.Client,
		registry:    cfg.Registry,
		maxRounds:   maxRounds,
		temperature: cfg.Temperature,
		logger:      cfg.Logger.With("component", "loop"),
	}, nil
}

// Run drives the model to completion over the given message history.
//
// Each round streams text fragments to sender as they are decoded. If the
// round requests tools they execute sequentially in request order, every
// request receives exactly one outcome, and the loop re-enters the model
// with the outcomes appended to history. With declareTools false the model
// sees no tool declarations, so the first round is also the last.
//
// The returned text is the accumulated text of the final round only;
// earlier rounds' text is conversation history, not turn output. A model
// transport failure is fatal to the turn.
func (l *Loop) Run(ctx context.Context, inv tools.Invocation, messages []model.Message, declareTools bool, sender Sender) (string, error) {
	var specs []model.ToolSpec
	if declareTools {
		specs = l.registry.Specs()
	}

	history := make([]model.Message, len(messages))
	copy(history, messages)

	for round := 1; round <= l.maxRounds; round++ {
		text, requests, err := l.callModel(ctx, history, specs, sender)
		if err != nil {
			return "", err
		}

		history = append(history, model.NewAssistantMessage(text, requests))

		if len(requests) == 0 {
			l.logger.Debug("turn completed", "rounds", round, "response_len", len(text))
			return strings.TrimSpace(text), nil
		}

		l.logger.Debug("model requested tools", "round", round, "count", len(requests))
		if err := sender.SendToolRunning(requests); err != nil {
			return "", fmt.Errorf("notify tool start: %w", err)
		}

		outcomes := make([]model.ToolOutcome, 0, len(requests))
		for _, req := range requests {
			outcomes = append(outcomes, l.registry.Execute(ctx, inv, req))
		}

		if err := sender.SendToolFinished(outcomes); err != nil {
			return "", fmt.Errorf("notify tool finish: %w", err)
		}

		history = append(history, model.NewToolResultMessage(outcomes))
	}

	l.logger.Warn("round ceiling reached", "max_rounds", l.maxRounds)
	return "", fmt.Errorf("%w (%d)", ErrRoundLimit, l.maxRounds)
}

// callModel performs one model call, draining the stream through an
// accumulator and forwarding text fragments to the sender as they arrive.
func (l *Loop) callModel(ctx context.Context, history []model.Message, specs []model.ToolSpec, sender Sender) (string, []model.ToolRequest, error) {
	req := model.Request{
		System:      systemPreamble,
		Messages:    history,
		Tools:       specs,
		MaxTokens:   defaultMaxTokens,
		Temperature: l.temperature,
	}

	acc := model.NewAccumulator()
	for ev, err := range l.client.Converse(ctx, req) {
		if err != nil {
			return "", nil, err
		}
		if fragment := acc.Push(ev); fragment != "" {
			if err := sender.SendText(fragment); err != nil {
				return "", nil, fmt.Errorf("forward text: %w", err)
			}
		}
	}

	if !acc.Done() {
		return "", nil, errors.New("model stream ended without message stop")
	}

	return acc.Text(), acc.Requests(), nil
}
