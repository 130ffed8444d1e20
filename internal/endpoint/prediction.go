// Prediction and ChatResponse share the same wire protocol and event
// ordering (spec.md §4.6.2): the only difference is the creation
// payload (a raw prompt vs. a chat history) and whether tool-call
// frames are expected. One engine, RunPrediction, drives both.
package endpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ToolDef is a tool definition as the ChatResponse endpoint needs it:
// enough to validate an inbound toolCallRequest against. The callable
// implementation lives one layer up, in the Act loop — the endpoint
// only validates shape, it never invokes a tool.
type ToolDef struct {
	Name     string
	Required []string // required argument keys
	Schema   any       // full JSON schema, sent to the server verbatim
}

// ToolCallRequest is the model's request to invoke a tool, carried by
// a toolCallRequest frame. Valid is false when the endpoint's own
// validation rejected the request (unknown tool, missing required
// argument, or — on a final Act round with no tools declared — any
// tool call at all); ErrorMessage then carries the text to feed back
// to the model as the synthetic tool result.
type ToolCallRequest struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Arguments    map[string]any `json:"arguments"`
	Valid        bool           `json:"-"`
	ErrorMessage string         `json:"-"`
}

// PredictionConfig carries the creation payload inputs and the six
// optional callbacks spec.md §4.6.2 names (on_tool_call and
// handle_invalid_tool_request only make sense for ChatResponse, so
// they are simply left nil by Prediction callers).
type PredictionConfig struct {
	Model            string
	Prompt           string          // Prediction
	History          any             // ChatResponse: wire-form chat history
	Tools            []ToolDef       // ChatResponse: empty/nil on a tool-less (e.g. final Act) round
	StructuredSchema json.RawMessage // optional JSON schema for the final content
	Params           json.RawMessage // inference knobs (temperature, max tokens, ...)

	OnMessage                  func(content string)
	OnFirstToken               func()
	OnFragment                 func(text string, reasoning bool)
	OnPromptProcessingProgress func(fraction float64)
	OnToolCall                 func(req ToolCallRequest)
	// HandleInvalidToolRequest renders the reason given by validation
	// into the error string fed back to the model as the tool's
	// synthetic result. A nil value falls back to the reason as-is.
	HandleInvalidToolRequest func(toolName, reason string) string
}

func (c PredictionConfig) validate(req ToolCallRequest) ToolCallRequest {
	var def *ToolDef
	for i := range c.Tools {
		if c.Tools[i].Name == req.Name {
			def = &c.Tools[i]
			break
		}
	}

	reason := ""
	switch {
	case def == nil:
		reason = fmt.Sprintf("tool %q is not available", req.Name)
	default:
		for _, key := range def.Required {
			if _, ok := req.Arguments[key]; !ok {
				reason = fmt.Sprintf("tool %q missing required argument %q", req.Name, key)
				break
			}
		}
	}

	if reason == "" {
		req.Valid = true
		return req
	}

	if c.HandleInvalidToolRequest != nil {
		reason = c.HandleInvalidToolRequest(req.Name, reason)
	}
	req.Valid = false
	req.ErrorMessage = reason
	return req
}

// WireParam renders the creationParameter for the predict channel.
// endpointKind distinguishes Prediction ("completion") from
// ChatResponse ("chat") prompts in the payload shape.
func (c PredictionConfig) WireParam(endpointKind string) any {
	m := map[string]any{
		"modelKey": c.Model,
		"kind":     endpointKind,
	}
	if c.Prompt != "" {
		m["prompt"] = c.Prompt
	}
	if c.History != nil {
		m["history"] = c.History
	}
	if len(c.Tools) > 0 {
		schemas := make([]any, len(c.Tools))
		for i, t := range c.Tools {
			schemas[i] = t.Schema
		}
		m["tools"] = schemas
	}
	if len(c.StructuredSchema) > 0 {
		m["structured"] = c.StructuredSchema
	}
	if len(c.Params) > 0 {
		m["config"] = c.Params
	}
	return m
}

// PredictionResult is the terminal value of a successful prediction.
// A cancelled prediction yields no result: RunPrediction returns
// *PredictionCancelled instead.
type PredictionResult struct {
	Content    string
	Structured json.RawMessage
	ToolCalls  []ToolCallRequest
	StopReason string
	Cancelled  bool
	Stats      map[string]any
}

type predictionFrame struct {
	Type             string          `json:"type"`
	Fraction         float64         `json:"fraction"`
	Fragment         string          `json:"fragment"`
	ReasoningType    string          `json:"reasoningType"`
	ToolCallRequest  ToolCallRequest `json:"toolCallRequest"`
	Content          string          `json:"content"`
	StopReason       string          `json:"stopReason"`
	Stats            map[string]any  `json:"stats"`
	Error            *struct {
		Title string `json:"title"`
		Cause string `json:"cause"`
	} `json:"error"`
}

// receiver is satisfied by *session.Channel; accepted as an
// interface so tests can drive RunPrediction without a real channel.
type receiver interface {
	Recv(ctx context.Context) (json.RawMessage, error)
}

// RunPrediction drives an already-opened channel through the
// PromptProcessing* → FirstToken → Fragment+ → (ToolCallRequest |
// Message)* → Result ordering, invoking callbacks as events arrive
// and returning the terminal result.
func RunPrediction(ctx context.Context, ch receiver, log *slog.Logger, cfg PredictionConfig) (*PredictionResult, error) {
	if log == nil {
		log = slog.Default()
	}

	var (
		builder         strings.Builder
		toolCalls       []ToolCallRequest
		maxProgress     float64
		firstTokenFired bool
	)

	for {
		raw, err := ch.Recv(ctx)
		if err == io.EOF {
			return nil, &RuntimeError{Detail: "prediction channel closed without a terminal frame"}
		}
		if err != nil {
			return nil, err
		}

		var f predictionFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, &RuntimeError{Detail: fmt.Sprintf("malformed prediction frame: %v", err)}
		}

		switch f.Type {
		case "promptProcessingProgress":
			maxProgress = Monotonic(maxProgress, f.Fraction)
			safeCall(log, "onPromptProcessingProgress", func() {
				if cfg.OnPromptProcessingProgress != nil {
					cfg.OnPromptProcessingProgress(maxProgress)
				}
			})

		case "fragment":
			if !firstTokenFired {
				firstTokenFired = true
				safeCall(log, "onFirstToken", func() {
					if cfg.OnFirstToken != nil {
						cfg.OnFirstToken()
					}
				})
			}
			reasoning := f.ReasoningType != "" && f.ReasoningType != "none"
			if !reasoning {
				builder.WriteString(f.Fragment)
			}
			safeCall(log, "onFragment", func() {
				if cfg.OnFragment != nil {
					cfg.OnFragment(f.Fragment, reasoning)
				}
			})

		case "toolCallRequest":
			req := cfg.validate(f.ToolCallRequest)
			toolCalls = append(toolCalls, req)
			safeCall(log, "onToolCall", func() {
				if cfg.OnToolCall != nil {
					cfg.OnToolCall(req)
				}
			})

		case "message":
			safeCall(log, "onMessage", func() {
				if cfg.OnMessage != nil {
					cfg.OnMessage(f.Content)
				}
			})

		case "error":
			detail := "prediction failed"
			if f.Error != nil {
				detail = f.Error.Title
				if f.Error.Cause != "" {
					detail += ": " + f.Error.Cause
				}
			}
			return nil, &PredictionError{Detail: detail}

		case "success":
			return finalizeResult(f, builder.String(), toolCalls, cfg.StructuredSchema)

		default:
			log.Debug("ignoring unknown prediction frame", "type", f.Type)
		}
	}
}

func finalizeResult(f predictionFrame, content string, toolCalls []ToolCallRequest, schema json.RawMessage) (*PredictionResult, error) {
	res := &PredictionResult{
		Content:    content,
		ToolCalls:  toolCalls,
		StopReason: f.StopReason,
		Stats:      f.Stats,
		Cancelled:  f.StopReason == "userStopped",
	}

	if len(schema) > 0 && !res.Cancelled {
		var parsed any
		if err := json.Unmarshal([]byte(content), &parsed); err != nil {
			return nil, &PredictionError{Detail: fmt.Sprintf("structured response did not parse: %v", err)}
		}
		structured, err := json.Marshal(parsed)
		if err != nil {
			return nil, &PredictionError{Detail: fmt.Sprintf("re-encoding structured response: %v", err)}
		}
		res.Structured = structured
	}

	if res.Cancelled {
		return nil, &PredictionCancelled{}
	}
	return res, nil
}
