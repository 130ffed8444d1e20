package lmstudio

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nugget/lmstudio-go/internal/endpoint"
	"github.com/nugget/lmstudio-go/internal/session"
)

// LLMHandle composes Session primitives into the user-facing LLM
// operations: load, predict, chat, act, tokenize (spec.md §4.6 / §2
// item 6).
type LLMHandle struct {
	session  *session.Session
	modelKey string
	ttl      int64
	log      *slog.Logger
}

// Tool is a single tool definition for Respond/Act: its JSON schema
// (sent to the server verbatim), the argument keys required for a
// request to validate, and the synchronous Go implementation invoked
// when the model calls it.
type Tool struct {
	Name     string
	Schema   any
	Required []string
	Impl     func(ctx context.Context, args map[string]any) (string, error)
}

func (t Tool) def() endpoint.ToolDef {
	return endpoint.ToolDef{Name: t.Name, Required: t.Required, Schema: t.Schema}
}

// LoadOptions configures LLMHandle.Load / GetOrLoad.
type LoadOptions struct {
	Identifier string
	TTLSeconds *int64
	Config     json.RawMessage
	OnProgress func(fraction float64)
}

func (l *LLMHandle) ttlOrDefault(o LoadOptions) *int64 {
	if o.TTLSeconds != nil {
		return o.TTLSeconds
	}
	ttl := l.ttl
	return &ttl
}

// Load sends loadModel, always starting a fresh instance.
func (l *LLMHandle) Load(ctx context.Context, opts LoadOptions) (string, error) {
	return l.load(ctx, "loadModel", opts)
}

// GetOrLoad sends getOrLoadModel, reusing an already-loaded instance
// when one matches.
func (l *LLMHandle) GetOrLoad(ctx context.Context, opts LoadOptions) (string, error) {
	return l.load(ctx, "getOrLoadModel", opts)
}

func (l *LLMHandle) load(ctx context.Context, endpointName string, opts LoadOptions) (string, error) {
	params := endpoint.LoadModelParams{
		ModelKey:   l.modelKey,
		Identifier: opts.Identifier,
		TTLSeconds: l.ttlOrDefault(opts),
		Config:     opts.Config,
	}
	ch, err := l.session.OpenChannel(ctx, endpointName, params.WireParam())
	if err != nil {
		return "", err
	}
	return endpoint.RunLoadModel(ctx, ch, l.log, orNoop(opts.OnProgress))
}

// Unload proxies unloadModel.
func (l *LLMHandle) Unload(ctx context.Context, identifier string) error {
	_, err := l.session.RemoteCall(ctx, "unloadModel", map[string]any{"identifier": identifier})
	return err
}

// GetLoadConfig proxies getLoadConfig, returning the raw payload —
// its shape is server/model-defined and out of this core's scope to
// model further.
func (l *LLMHandle) GetLoadConfig(ctx context.Context, identifier string) (json.RawMessage, error) {
	return l.session.RemoteCall(ctx, "getLoadConfig", map[string]any{"identifier": identifier})
}

// GetModelInfo proxies getModelInfo.
func (l *LLMHandle) GetModelInfo(ctx context.Context) (json.RawMessage, error) {
	return l.session.RemoteCall(ctx, "getModelInfo", map[string]any{"modelKey": l.modelKey})
}

// ApplyPromptTemplate proxies applyPromptTemplate, rendering a chat
// history through the model's template without running inference —
// supplemented from original_source's apply_prompt_template.
func (l *LLMHandle) ApplyPromptTemplate(ctx context.Context, history *History) (string, error) {
	raw, err := l.session.RemoteCall(ctx, "applyPromptTemplate", map[string]any{
		"modelKey": l.modelKey,
		"history":  history.WireForm(),
	})
	if err != nil {
		return "", err
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &RuntimeError{Detail: "applyPromptTemplate: " + err.Error()}
	}
	return out.Text, nil
}

// Tokenize proxies tokenize for a single string. TokenizeBatch covers
// the slice form — the original Python dispatches on str vs
// Iterable[str]; Go has no natural overload for that, so the two
// shapes get two explicit methods sharing one RPC helper.
func (l *LLMHandle) Tokenize(ctx context.Context, text string) ([]int, error) {
	toks, err := l.tokenize(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return toks[0], nil
}

// TokenizeBatch proxies tokenize for multiple strings in one call.
func (l *LLMHandle) TokenizeBatch(ctx context.Context, texts []string) ([][]int, error) {
	return l.tokenize(ctx, texts)
}

func (l *LLMHandle) tokenize(ctx context.Context, texts []string) ([][]int, error) {
	raw, err := l.session.RemoteCall(ctx, "tokenize", map[string]any{
		"modelKey": l.modelKey,
		"inputs":   texts,
	})
	if err != nil {
		return nil, err
	}
	var out [][]int
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &RuntimeError{Detail: "tokenize: " + err.Error()}
	}
	return out, nil
}

// PredictOptions configures a single-shot text completion.
type PredictOptions struct {
	StructuredSchema           json.RawMessage
	Params                     json.RawMessage
	OnMessage                  func(content string)
	OnFirstToken               func()
	OnFragment                 func(text string, reasoning bool)
	OnPromptProcessingProgress func(fraction float64)
}

// Complete runs a raw-prompt prediction to completion.
func (l *LLMHandle) Complete(ctx context.Context, prompt string, opts PredictOptions) (*endpoint.PredictionResult, error) {
	ps, err := l.CompleteStream(ctx, prompt, opts)
	if err != nil {
		return nil, err
	}
	return ps.Wait(ctx)
}

// CompleteStream opens a raw-prompt prediction and returns
// immediately with a PredictionStream the caller can Cancel or Wait
// on — the non-blocking counterpart to Complete.
func (l *LLMHandle) CompleteStream(ctx context.Context, prompt string, opts PredictOptions) (*PredictionStream, error) {
	cfg := endpoint.PredictionConfig{
		Model:                      l.modelKey,
		Prompt:                     prompt,
		StructuredSchema:           opts.StructuredSchema,
		Params:                     opts.Params,
		OnMessage:                  opts.OnMessage,
		OnFirstToken:               opts.OnFirstToken,
		OnFragment:                 opts.OnFragment,
		OnPromptProcessingProgress: opts.OnPromptProcessingProgress,
	}
	ch, err := l.session.OpenChannel(ctx, "predict", cfg.WireParam("completion"))
	if err != nil {
		return nil, err
	}
	return newPredictionStream(ctx, ch, l.log, cfg), nil
}

// ChatOptions configures a chat-history prediction. OnToolCall fires
// for every tool-call request the model makes, and
// HandleInvalidToolRequest for each one that fails validation; with no
// tools supplied, every tool-call request fails validation.
type ChatOptions struct {
	StructuredSchema           json.RawMessage
	Params                     json.RawMessage
	OnMessage                  func(content string)
	OnFirstToken               func()
	OnFragment                 func(text string, reasoning bool)
	OnPromptProcessingProgress func(fraction float64)
	OnToolCall                 func(req endpoint.ToolCallRequest)
	HandleInvalidToolRequest   func(toolName, reason string) string
}

// Respond runs a chat-history prediction to completion.
func (l *LLMHandle) Respond(ctx context.Context, history *History, tools []Tool, opts ChatOptions) (*endpoint.PredictionResult, error) {
	ps, err := l.RespondStream(ctx, history, tools, opts)
	if err != nil {
		return nil, err
	}
	return ps.Wait(ctx)
}

// RespondStream is the non-blocking counterpart to Respond.
func (l *LLMHandle) RespondStream(ctx context.Context, history *History, tools []Tool, opts ChatOptions) (*PredictionStream, error) {
	defs := make([]endpoint.ToolDef, len(tools))
	for i, t := range tools {
		defs[i] = t.def()
	}
	cfg := endpoint.PredictionConfig{
		Model:                      l.modelKey,
		History:                    history.WireForm(),
		Tools:                      defs,
		StructuredSchema:           opts.StructuredSchema,
		Params:                     opts.Params,
		OnMessage:                  opts.OnMessage,
		OnFirstToken:               opts.OnFirstToken,
		OnFragment:                 opts.OnFragment,
		OnPromptProcessingProgress: opts.OnPromptProcessingProgress,
		OnToolCall:                 opts.OnToolCall,
		HandleInvalidToolRequest:   opts.HandleInvalidToolRequest,
	}
	ch, err := l.session.OpenChannel(ctx, "predict", cfg.WireParam("chat"))
	if err != nil {
		return nil, err
	}
	return newPredictionStream(ctx, ch, l.log, cfg), nil
}

func orNoop(fn func(float64)) func(float64) {
	if fn != nil {
		return fn
	}
	return func(float64) {}
}
