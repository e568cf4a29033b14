package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dataquay/dataquay/internal/converse"
	"github.com/dataquay/dataquay/internal/log"
	"github.com/dataquay/dataquay/internal/model"
)

// MessageHandler handles the inbound message endpoint. Each request carries
// one event envelope; the reply is an SSE stream of turn events.
//
// Event types:
//   - heartbeat:     heartbeat acknowledgement
//   - text:          partial assistant text {"text": "..."}
//   - tool_running:  tool requests being executed
//   - tool_finished: tool outcomes collected
//   - loop:          end of a model exchange {"final": bool}
//   - error:         user-visible failure {"message": "..."}
//   - done:          transport-level completion {"ok": true}, always sent
//
// The done frame is sent regardless of internal outcome: failures travel
// as error events, never as transport status.
type MessageHandler struct {
	controller *converse.Controller
	logger     log.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(controller *converse.Controller, logger log.Logger) *MessageHandler {
	return &MessageHandler{controller: controller, logger: logger.With("component", "api")}
}

// RegisterRoutes registers message routes on the given mux.
func (h *MessageHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/message", h.handleMessage)
}

// handleMessage decodes the envelope and runs the turn, streaming events.
func (h *MessageHandler) handleMessage(w http.ResponseWriter, r *http.Request) {
	var env converse.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("invalid request body: %v", err))
		return
	}
	env.UserID = r.Header.Get("X-User-ID")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("streaming not supported")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	h.logger.Info("message received",
		"session_id", env.SessionID,
		"event_type", env.EventType)

	sender := &sseSender{w: w, flusher: flusher}
	h.controller.Handle(r.Context(), env, sender)

	// Transport-level success, independent of internal outcome.
	sender.write("done", map[string]any{"ok": true})
}

// sseSender implements converse.Sender over a Server-Sent Events stream.
type sseSender struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// write emits one SSE frame and flushes it immediately so partial text
// reaches the client before the turn completes.
func (s *sseSender) write(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return fmt.Errorf("write %s event: %w", event, err)
	}
	s.flusher.Flush()
	return nil
}

func (s *sseSender) SendHeartbeat() error {
	return s.write("heartbeat", map[string]any{})
}

func (s *sseSender) SendText(fragment string) error {
	return s.write("text", map[string]string{"text": fragment})
}

func (s *sseSender) SendError(message string) error {
	return s.write("error", map[string]string{"message": message})
}

func (s *sseSender) SendToolRunning(requests []model.ToolRequest) error {
	type tool struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	tools := make([]tool, len(requests))
	for i, req := range requests {
		tools[i] = tool{ID: req.ID, Name: req.Name}
	}
	return s.write("tool_running", map[string]any{"tools": tools})
}

func (s *sseSender) SendToolFinished(outcomes []model.ToolOutcome) error {
	type result struct {
		RequestID string `json:"request_id"`
		Error     string `json:"error,omitempty"`
	}
	results := make([]result, len(outcomes))
	for i, o := range outcomes {
		results[i] = result{RequestID: o.RequestID, Error: o.Err}
	}
	return s.write("tool_finished", map[string]any{"results": results})
}

func (s *sseSender) SendLoop(final bool) error {
	return s.write("loop", map[string]bool{"final": final})
}
