package lmstudio

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nugget/lmstudio-go/internal/endpoint"
	"github.com/nugget/lmstudio-go/internal/session"
)

// EmbeddingHandle composes Session primitives into the user-facing
// embedding-model operations: load, embed, tokenize (spec.md §2 item
// 6, §6 embedding namespace).
type EmbeddingHandle struct {
	session  *session.Session
	modelKey string
	ttl      int64
	log      *slog.Logger
}

func (e *EmbeddingHandle) ttlOrDefault(o LoadOptions) *int64 {
	if o.TTLSeconds != nil {
		return o.TTLSeconds
	}
	ttl := e.ttl
	return &ttl
}

// Load sends loadModel, always starting a fresh instance.
func (e *EmbeddingHandle) Load(ctx context.Context, opts LoadOptions) (string, error) {
	return e.load(ctx, "loadModel", opts)
}

// GetOrLoad sends getOrLoadModel, reusing an already-loaded instance
// when one matches.
func (e *EmbeddingHandle) GetOrLoad(ctx context.Context, opts LoadOptions) (string, error) {
	return e.load(ctx, "getOrLoadModel", opts)
}

func (e *EmbeddingHandle) load(ctx context.Context, endpointName string, opts LoadOptions) (string, error) {
	params := endpoint.LoadModelParams{
		ModelKey:   e.modelKey,
		Identifier: opts.Identifier,
		TTLSeconds: e.ttlOrDefault(opts),
		Config:     opts.Config,
	}
	ch, err := e.session.OpenChannel(ctx, endpointName, params.WireParam())
	if err != nil {
		return "", err
	}
	return endpoint.RunLoadModel(ctx, ch, e.log, orNoop(opts.OnProgress))
}

// Unload proxies unloadModel.
func (e *EmbeddingHandle) Unload(ctx context.Context, identifier string) error {
	_, err := e.session.RemoteCall(ctx, "unloadModel", map[string]any{"identifier": identifier})
	return err
}

// GetModelInfo proxies getModelInfo.
func (e *EmbeddingHandle) GetModelInfo(ctx context.Context) (json.RawMessage, error) {
	return e.session.RemoteCall(ctx, "getModelInfo", map[string]any{"modelKey": e.modelKey})
}

// Embed proxies embedString for a single input.
func (e *EmbeddingHandle) Embed(ctx context.Context, text string) ([]float64, error) {
	vecs, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch proxies embedString for multiple inputs in one call.
func (e *EmbeddingHandle) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	return e.embed(ctx, texts)
}

func (e *EmbeddingHandle) embed(ctx context.Context, texts []string) ([][]float64, error) {
	raw, err := e.session.RemoteCall(ctx, "embedString", map[string]any{
		"modelKey": e.modelKey,
		"inputs":   texts,
	})
	if err != nil {
		return nil, err
	}
	var out struct {
		Embeddings [][]float64 `json:"embeddings"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &RuntimeError{Detail: "embedString: " + err.Error()}
	}
	return out.Embeddings, nil
}

// Tokenize proxies tokenize for a single string.
func (e *EmbeddingHandle) Tokenize(ctx context.Context, text string) ([]int, error) {
	toks, err := e.tokenize(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return toks[0], nil
}

// TokenizeBatch proxies tokenize for multiple strings in one call.
func (e *EmbeddingHandle) TokenizeBatch(ctx context.Context, texts []string) ([][]int, error) {
	return e.tokenize(ctx, texts)
}

func (e *EmbeddingHandle) tokenize(ctx context.Context, texts []string) ([][]int, error) {
	raw, err := e.session.RemoteCall(ctx, "tokenize", map[string]any{
		"modelKey": e.modelKey,
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
