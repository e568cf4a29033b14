package converse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dataquay/dataquay/internal/log"
	"github.com/dataquay/dataquay/internal/query"
	"github.com/dataquay/dataquay/internal/tools"
)

// Event types accepted on the inbound envelope.
const (
	EventHeartbeat = "HEARTBEAT"
	EventConverse  = "CONVERSE"
)

// Envelope is the inbound message envelope. SessionID is required for every
// event; UserID is supplied by the transport.
type Envelope struct {
	SessionID string `json:"session_id"`
	EventType string `json:"event_type"`
	Message   string `json:"message"`
	UserID    string `json:"-"`
}

// TranscriptStore persists completed turns. Defined here because the
// controller is the consumer; persistence is best-effort and a failure
// never fails the turn.
type TranscriptStore interface {
	RecordTurn(ctx context.Context, sessionID, userMessage, artifact string) error
}

// Controller is the top-level entry point for one inbound event. It
// validates the envelope, dispatches heartbeat vs. conversational turns and
// wires the router and query pipeline together.
//
// Every error raised anywhere in the turn is caught here, logged with
// context and converted into a single sender-delivered error message. The
// transport always observes success; internal failure travels only on the
// sender channel.
type Controller struct {
	router         *Router
	pipeline       *query.Pipeline
	store          TranscriptStore // nil = persistence disabled
	database       string
	outputLocation string
	logger         log.Logger
}

// ControllerConfig contains the Controller's dependencies.
type ControllerConfig struct {
	Router         *Router
	Pipeline       *query.Pipeline
	Store          TranscriptStore // optional
	Database       string
	OutputLocation string
	Logger         log.Logger
}

// NewController creates a Controller.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Router == nil {
		return nil, errors.New("router is required")
	}
	if cfg.Pipeline == nil {
		return nil, errors.New("query pipeline is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Controller{
		router:         cfg.Router,
		pipeline:       cfg.Pipeline,
		store:          cfg.Store,
		database:       cfg.Database,
		outputLocation: cfg.OutputLocation,
		logger:         cfg.Logger.With("component", "turn"),
	}, nil
}

// Handle processes one inbound event to completion. It never reports
// failure to the caller: internal errors are logged and delivered through
// the sender.
func (c *Controller) Handle(ctx context.Context, env Envelope, sender Sender) {
	if err := c.handle(ctx, env, sender); err != nil {
		c.logger.Error("error processing message",
			"session_id", env.SessionID,
			"event_type", env.EventType,
			"error", err)
		if sendErr := sender.SendError(err.Error()); sendErr != nil {
			c.logger.Error("failed to deliver error to sender", "error", sendErr)
		}
	}
}

// handle validates and dispatches the event.
func (c *Controller) handle(ctx context.Context, env Envelope, sender Sender) error {
	if env.SessionID == "" {
		return ErrSessionRequired
	}

	switch env.EventType {
	case EventHeartbeat:
		return sender.SendHeartbeat()
	case EventConverse:
		return c.converse(ctx, env, sender)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownEvent, env.EventType)
	}
}

// converse runs one conversational turn: generate the query, execute it,
// classify the visualization and generate the final artifact, streaming
// text to the sender throughout.
func (c *Controller) converse(ctx context.Context, env Envelope, sender Sender) error {
	c.logger.Info("conversational turn started", "session_id", env.SessionID)
	inv := tools.Invocation{UserID: env.UserID, SessionID: env.SessionID}

	sql, err := c.router.GenerateQuery(ctx, inv, env.Message, sender)
	if err != nil {
		return err
	}

	rows := c.pipeline.Execute(ctx, query.Submission{
		Query:          sql,
		Database:       c.database,
		OutputLocation: c.outputLocation,
	})
	if rows == nil {
		// The pipeline already logged the cause.
		return ErrQueryFailed
	}

	resultsJSON, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("encode query results: %w", err)
	}

	intent, err := c.router.Classify(ctx, inv, env.Message, sender)
	if err != nil {
		return err
	}
	if intent == IntentUnknown {
		return errors.New("unable to determine visualization type")
	}

	artifact, err := c.router.Generate(ctx, inv, intent, string(resultsJSON), sender)
	if err != nil {
		return err
	}

	if err := sender.SendLoop(true); err != nil {
		return fmt.Errorf("signal turn end: %w", err)
	}

	c.persist(ctx, env, artifact)
	c.logger.Info("conversational turn completed",
		"session_id", env.SessionID,
		"intent", intent.String(),
		"artifact_len", len(artifact))
	return nil
}

// persist records the turn transcript if a store is configured. Failures
// are logged and swallowed; the turn has already succeeded.
func (c *Controller) persist(ctx context.Context, env Envelope, artifact string) {
	if c.store == nil {
		return
	}
	if err := c.store.RecordTurn(ctx, env.SessionID, env.Message, artifact); err != nil {
		c.logger.Warn("failed to persist transcript", "session_id", env.SessionID, "error", err)
	}
}
