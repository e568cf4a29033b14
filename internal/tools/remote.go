package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// remoteCallTimeout bounds a single remote tool invocation.
const remoteCallTimeout = 60 * time.Second

// RemoteTool invokes a tool hosted behind an HTTP endpoint. The request
// carries the execution context alongside the model-supplied arguments;
// the response body is the tool output, passed back to the model verbatim.
type RemoteTool struct {
	name        string
	description string
	schema      map[string]any
	endpoint    string
	client      *http.Client
}

// NewRemoteTool creates a tool that POSTs invocations to endpoint.
func NewRemoteTool(name, description string, schema map[string]any, endpoint string) *RemoteTool {
	return &RemoteTool{
		name:        name,
		description: description,
		schema:      schema,
		endpoint:    endpoint,
		client:      &http.Client{Timeout: remoteCallTimeout},
	}
}

func (t *RemoteTool) Name() string                { return t.name }
func (t *RemoteTool) Description() string         { return t.description }
func (t *RemoteTool) InputSchema() map[string]any { return t.schema }

// remoteRequest is the wire payload sent to the tool endpoint.
type remoteRequest struct {
	Tool      string          `json:"tool"`
	UserID    string          `json:"user_id"`
	SessionID string          `json:"session_id"`
	Input     json.RawMessage `json:"input"`
}

// Call posts the invocation and returns the decoded response body. A JSON
// response is returned as structured data, anything else as a plain string.
func (t *RemoteTool) Call(ctx context.Context, inv Invocation, input json.RawMessage) (any, error) {
	payload, err := json.Marshal(remoteRequest{
		Tool:      t.name,
		UserID:    inv.UserID,
		SessionID: inv.SessionID,
		Input:     input,
	})
	if err != nil {
		return nil, fmt.Errorf("encode tool request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build tool request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("invoke tool %s: %w", t.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tool response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tool %s returned status %d: %s", t.name, resp.StatusCode, body)
	}

	var out any
	if err := json.Unmarshal(body, &out); err != nil {
		return string(body), nil
	}
	return out, nil
}

// CodeInterpreter declares the code-execution tool backed by endpoint.
func CodeInterpreter(endpoint string) *RemoteTool {
	return NewRemoteTool(
		"code_interpreter",
		"Executes Python code in a sandbox and returns the output. Use for calculations, data analysis and file generation.",
		map[string]any{
			"properties": map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "The Python code to execute.",
				},
			},
			"required": []string{"code"},
		},
		endpoint,
	)
}

// WebSearch declares the web-search tool backed by endpoint.
func WebSearch(endpoint string) *RemoteTool {
	return NewRemoteTool(
		"web_search",
		"Searches the web and returns the most relevant results for a query.",
		map[string]any{
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query.",
				},
			},
			"required": []string{"query"},
		},
		endpoint,
	)
}
