package tools

import (
	"context"
	"fmt"

	"github.com/dataquay/dataquay/internal/log"
	"github.com/dataquay/dataquay/internal/model"
)

// Registry holds the process-wide tool set. It is populated at start-up and
// read-only afterwards, so it is safe to share across turns.
type Registry struct {
	tools  map[string]Tool
	order  []string
	logger log.Logger
}

// NewRegistry creates a registry over the given tools. Duplicate names keep
// the first registration.
func NewRegistry(logger log.Logger, tools ...Tool) *Registry {
	r := &Registry{
		tools:  make(map[string]Tool, len(tools)),
		logger: logger.With("component", "tools"),
	}
	for _, t := range tools {
		if _, exists := r.tools[t.Name()]; exists {
			r.logger.Warn("duplicate tool registration ignored", "tool", t.Name())
			continue
		}
		r.tools[t.Name()] = t
		r.order = append(r.order, t.Name())
	}
	return r
}

// Specs returns the declarations for all registered tools, in registration
// order.
func (r *Registry) Specs() []model.ToolSpec {
	specs := make([]model.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		specs = append(specs, model.ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	return specs
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.order)
}

// Execute runs one tool request and returns its outcome. Execution failures
// are folded into the outcome so the model can see and adapt to them; only
// the outcome's Err field reports the failure, Execute itself never errors.
func (r *Registry) Execute(ctx context.Context, inv Invocation, req model.ToolRequest) model.ToolOutcome {
	tool, ok := r.tools[req.Name]
	if !ok {
		r.logger.Warn("model requested unknown tool", "tool", req.Name, "request_id", req.ID)
		return model.ToolOutcome{
			RequestID: req.ID,
			Err:       fmt.Sprintf("unknown tool: %s", req.Name),
		}
	}

	r.logger.Debug("executing tool", "tool", req.Name, "request_id", req.ID)
	output, err := tool.Call(ctx, inv, req.Input)
	if err != nil {
		r.logger.Warn("tool execution failed", "tool", req.Name, "request_id", req.ID, "error", err)
		return model.ToolOutcome{RequestID: req.ID, Err: err.Error()}
	}

	return model.ToolOutcome{RequestID: req.ID, Output: output}
}
