package lmstudio

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nugget/lmstudio-go/internal/endpoint"
	"github.com/nugget/lmstudio-go/internal/session"
)

// DownloadedModel describes one entry from listDownloadedModels. Kind
// distinguishes an LLM from an embedding model without a deep
// inheritance chain (design note "generics over model kinds").
type DownloadedModel struct {
	Kind       ModelKind `json:"-"`
	ModelKey   string    `json:"modelKey"`
	Path       string    `json:"path"`
	SizeBytes  int64     `json:"sizeBytes"`
	Identifier string    `json:"identifier"`
}

// ModelKind distinguishes the two families of hosted model.
type ModelKind int

const (
	ModelKindLLM ModelKind = iota
	ModelKindEmbedding
)

// LoadedModel describes one entry from listLoaded.
type LoadedModel struct {
	Identifier string `json:"identifier"`
	ModelKey   string `json:"modelKey"`
}

// AvailableModel is one repository search result.
type AvailableModel struct {
	ModelKey    string `json:"modelKey"`
	DisplayName string `json:"displayName"`
	Publisher   string `json:"publisher"`
}

// DownloadOption is one downloadable artifact for an AvailableModel.
type DownloadOption struct {
	Name           string `json:"name"`
	Identifier     string `json:"identifier"`
	SizeBytes      int64  `json:"sizeBytes"`
	Recommended    bool   `json:"recommended"`
}

// SystemHandle exposes the system namespace: inventory of downloaded
// and loaded models.
type SystemHandle struct {
	session *session.Session
	log     *slog.Logger
}

// ListDownloadedModels proxies listDownloadedModels, dispatching each
// entry's wire "type" field into Kind (supplemented feature from
// original_source's _process_download_listing; spec.md names the
// endpoint but not this client-side classification).
func (s *SystemHandle) ListDownloadedModels(ctx context.Context) ([]DownloadedModel, error) {
	raw, err := s.session.RemoteCall(ctx, "listDownloadedModels", map[string]any{})
	if err != nil {
		return nil, err
	}

	var entries []struct {
		Type string `json:"type"`
		DownloadedModel
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, &RuntimeError{Detail: "listDownloadedModels: " + err.Error()}
	}

	out := make([]DownloadedModel, len(entries))
	for i, e := range entries {
		m := e.DownloadedModel
		if e.Type == "embedding" {
			m.Kind = ModelKindEmbedding
		} else {
			m.Kind = ModelKindLLM
		}
		out[i] = m
	}
	return out, nil
}

// ListLoaded proxies listLoaded for the given namespace ("llm" or
// "embedding"); the system namespace RPC takes the target namespace
// as a parameter so one call covers both model kinds.
func (s *SystemHandle) ListLoaded(ctx context.Context, namespace string) ([]LoadedModel, error) {
	raw, err := s.session.RemoteCall(ctx, "listLoaded", map[string]any{"namespace": namespace})
	if err != nil {
		return nil, err
	}
	var out []LoadedModel
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &RuntimeError{Detail: "listLoaded: " + err.Error()}
	}
	return out, nil
}

// RepositoryHandle exposes the repository namespace: model search and
// the search → download-option → download flow (supplemented from
// original_source's SyncSessionRepository).
type RepositoryHandle struct {
	session *session.Session
	log     *slog.Logger
}

// SearchModels proxies searchModels.
func (r *RepositoryHandle) SearchModels(ctx context.Context, query string) ([]AvailableModel, error) {
	raw, err := r.session.RemoteCall(ctx, "searchModels", map[string]any{"query": query})
	if err != nil {
		return nil, err
	}
	var out []AvailableModel
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &RuntimeError{Detail: "searchModels: " + err.Error()}
	}
	return out, nil
}

// GetDownloadOptions proxies getModelDownloadOptions for one search result.
func (r *RepositoryHandle) GetDownloadOptions(ctx context.Context, modelKey string) ([]DownloadOption, error) {
	raw, err := r.session.RemoteCall(ctx, "getModelDownloadOptions", map[string]any{"modelKey": modelKey})
	if err != nil {
		return nil, err
	}
	var out []DownloadOption
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &RuntimeError{Detail: "getModelDownloadOptions: " + err.Error()}
	}
	return out, nil
}

// Download opens the downloadModel channel for the given option
// identifier and drives it to completion, returning the final path.
func (r *RepositoryHandle) Download(ctx context.Context, downloadIdentifier string, onProgress func(endpoint.DownloadProgress)) (string, error) {
	ch, err := r.session.OpenChannel(ctx, "downloadModel", map[string]any{"downloadIdentifier": downloadIdentifier})
	if err != nil {
		return "", err
	}
	return endpoint.RunDownload(ctx, ch, r.log, onProgress)
}
