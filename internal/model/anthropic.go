package model

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dataquay/dataquay/internal/log"
)

// AnthropicClient implements Client on top of the Anthropic Messages API.
// It is read-only after construction and safe to share across turns.
type AnthropicClient struct {
	client anthropic.Client
	model  anthropic.Model
	logger log.Logger
}

// NewAnthropicClient creates a client for the given model id.
func NewAnthropicClient(apiKey, modelID string, logger log.Logger) *AnthropicClient {
	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(modelID),
		logger: logger.With("component", "model"),
	}
}

// Converse issues one streaming call and yields the translated event stream.
// Provider stream failures are yielded as a single terminal error.
func (c *AnthropicClient) Converse(ctx context.Context, req Request) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		params := c.buildParams(req)
		stream := c.client.Messages.NewStreaming(ctx, params)

		// Tool-use blocks are keyed by index on the wire; remember which
		// request id each open index belongs to.
		openBlocks := make(map[int64]string)

		for stream.Next() {
			event := stream.Current()
			switch ev := event.AsAny().(type) {
			case anthropic.ContentBlockStartEvent:
				if block, ok := ev.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
					openBlocks[ev.Index] = block.ID
					if !yield(Event{Kind: EventToolUseStart, ID: block.ID, Name: block.Name}, nil) {
						return
					}
				}
			case anthropic.ContentBlockDeltaEvent:
				switch delta := ev.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					if !yield(Event{Kind: EventTextDelta, Fragment: delta.Text}, nil) {
						return
					}
				case anthropic.InputJSONDelta:
					if id, ok := openBlocks[ev.Index]; ok {
						if !yield(Event{Kind: EventToolUseDelta, ID: id, Fragment: delta.PartialJSON}, nil) {
							return
						}
					}
				}
			case anthropic.ContentBlockStopEvent:
				if id, ok := openBlocks[ev.Index]; ok {
					delete(openBlocks, ev.Index)
					if !yield(Event{Kind: EventToolUseEnd, ID: id}, nil) {
						return
					}
				}
			case anthropic.MessageStopEvent:
				if !yield(Event{Kind: EventMessageEnd}, nil) {
					return
				}
			}
		}

		if err := stream.Err(); err != nil {
			c.logger.Error("model stream failed", "error", err)
			yield(Event{}, fmt.Errorf("model call: %w", err))
		}
	}
}

// buildParams converts a Request into Anthropic wire parameters.
func (c *AnthropicClient) buildParams(req Request) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   req.MaxTokens,
		Messages:    toAnthropicMessages(req.Messages),
		Temperature: anthropic.Float(req.Temperature),
	}

	for _, s := range req.System {
		params.System = append(params.System, anthropic.TextBlockParam{Text: s})
	}

	for _, tool := range req.Tools {
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: tool.InputSchema["properties"],
				},
			},
		})
	}

	return params
}

// toAnthropicMessages maps conversation messages onto wire message params.
func toAnthropicMessages(messages []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Content))
		for _, b := range msg.Content {
			switch {
			case b.ToolUse != nil:
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    b.ToolUse.ID,
						Name:  b.ToolUse.Name,
						Input: b.ToolUse.Input,
					},
				})
			case b.ToolResult != nil:
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolResult: &anthropic.ToolResultBlockParam{
						ToolUseID: b.ToolResult.RequestID,
						IsError:   anthropic.Bool(b.ToolResult.Failed()),
						Content: []anthropic.ToolResultBlockParamContentUnion{
							{OfText: &anthropic.TextBlockParam{Text: outcomeText(b.ToolResult)}},
						},
					},
				})
			default:
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfText: &anthropic.TextBlockParam{Text: b.Text},
				})
			}
		}

		switch msg.Role {
		case RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		default:
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}

	return out
}

// outcomeText renders a tool outcome as the text fed back to the model.
func outcomeText(o *ToolOutcome) string {
	if o.Failed() {
		return "Error: " + o.Err
	}
	if s, ok := o.Output.(string); ok {
		return s
	}
	b, err := json.Marshal(o.Output)
	if err != nil {
		return fmt.Sprintf("%v", o.Output)
	}
	return string(b)
}
