package lmstudio

import (
	"context"
	"sync"
)

// defaultClientInst is the process-wide Client the package-level
// convenience functions use, lazily constructed on first use
// (supplemented from original_source's get_default_client).
var (
	defaultClientMu   sync.Mutex
	defaultClientInst *Client
)

// DefaultClient returns the process-wide Client, constructing it with
// no options on first call. Prefer NewClient directly for anything
// beyond quick scripts and examples — the default client's Close is
// the caller's responsibility same as any other Client, and nothing
// closes it automatically at process exit.
func DefaultClient() *Client {
	defaultClientMu.Lock()
	defer defaultClientMu.Unlock()
	if defaultClientInst == nil {
		defaultClientInst = NewClient()
	}
	return defaultClientInst
}

// LLM is a thin wrapper around DefaultClient().LLM.
func LLM(modelKey string) *LLMHandle {
	return DefaultClient().LLM(modelKey)
}

// Embedding is a thin wrapper around DefaultClient().Embedding.
func Embedding(modelKey string) *EmbeddingHandle {
	return DefaultClient().Embedding(modelKey)
}

// AnyLLM is a thin wrapper around DefaultClient().AnyLLM.
func AnyLLM(ctx context.Context) (*LLMHandle, error) {
	return DefaultClient().AnyLLM(ctx)
}

// AnyEmbedding is a thin wrapper around DefaultClient().AnyEmbedding.
func AnyEmbedding(ctx context.Context) (*EmbeddingHandle, error) {
	return DefaultClient().AnyEmbedding(ctx)
}

// ListDownloadedModels is a thin wrapper around
// DefaultClient().System().ListDownloadedModels.
func ListDownloadedModels(ctx context.Context) ([]DownloadedModel, error) {
	return DefaultClient().System().ListDownloadedModels(ctx)
}

// ListLoadedModels is a thin wrapper around
// DefaultClient().System().ListLoaded.
func ListLoadedModels(ctx context.Context, namespace string) ([]LoadedModel, error) {
	return DefaultClient().System().ListLoaded(ctx, namespace)
}
