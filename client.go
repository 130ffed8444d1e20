package lmstudio

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/google/uuid"

	"github.com/nugget/lmstudio-go/internal/session"
	"github.com/nugget/lmstudio-go/internal/transport"
)

// Namespaces the protocol exposes (spec.md §6).
const (
	NamespaceSystem     = "system"
	NamespaceLLM        = "llm"
	NamespaceEmbedding  = "embedding"
	NamespaceFiles      = "files"
	NamespaceRepository = "repository"
)

// Option configures a Client. Every Config field except LogLevel has
// a matching Option, so a config file is never required to use the
// SDK; the log level is set on the logger passed to WithLogger.
type Option func(*clientSettings)

type clientSettings struct {
	host             string
	clientIdentifier string
	clientPasskey    string
	defaultTTL       int64
	logger           *slog.Logger
}

// WithHost overrides the server host (spec.md §6 default 127.0.0.1:1234).
func WithHost(host string) Option {
	return func(s *clientSettings) { s.host = host }
}

// WithClientIdentifier overrides the generated auth identifier.
func WithClientIdentifier(id string) Option {
	return func(s *clientSettings) { s.clientIdentifier = id }
}

// WithClientPasskey sets the auth passkey.
func WithClientPasskey(key string) Option {
	return func(s *clientSettings) { s.clientPasskey = key }
}

// WithDefaultTTLSeconds overrides the default model TTL.
func WithDefaultTTLSeconds(seconds int64) Option {
	return func(s *clientSettings) { s.defaultTTL = seconds }
}

// WithLogger sets the logger threaded through every component.
func WithLogger(l *slog.Logger) Option {
	return func(s *clientSettings) { s.logger = l }
}

// WithConfig seeds settings from a loaded Config; later Options still
// override individual fields. LogLevel is not applied.
func WithConfig(cfg *Config) Option {
	return func(s *clientSettings) {
		if cfg == nil {
			return
		}
		if cfg.Host != "" {
			s.host = cfg.Host
		}
		if cfg.DefaultTTLSeconds != nil {
			s.defaultTTL = *cfg.DefaultTTLSeconds
		}
		if cfg.ClientIdentifier != "" {
			s.clientIdentifier = cfg.ClientIdentifier
		}
		if cfg.ClientPasskey != "" {
			s.clientPasskey = cfg.ClientPasskey
		}
	}
}

// Client owns one Session per namespace, a LIFO resource stack for
// teardown, and a finalizer so Close runs even if the caller forgets
// (spec.md §4.7).
type Client struct {
	host             string
	clientIdentifier string
	clientPasskey    string
	defaultTTL       int64
	logger           *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session.Session
	closers  []func()
	closed   bool
}

// NewClient constructs a Client. No I/O happens here — sessions are
// lazily connected on first use (spec.md §8 invariant 6).
func NewClient(opts ...Option) *Client {
	s := clientSettings{
		host:             DefaultHost,
		clientIdentifier: uuid.NewString(),
		defaultTTL:       DefaultTTLSeconds,
		logger:           slog.Default(),
	}
	for _, o := range opts {
		o(&s)
	}

	c := &Client{
		host:             s.host,
		clientIdentifier: s.clientIdentifier,
		clientPasskey:    s.clientPasskey,
		defaultTTL:       s.defaultTTL,
		logger:           s.logger,
		sessions:         make(map[string]*session.Session),
	}

	runtime.AddCleanup(c, func(closed *bool) {
		if !*closed {
			slog.Default().Warn("lmstudio.Client garbage collected without Close")
		}
	}, &c.closed)

	return c
}

// getSession returns the namespace's Session, constructing and
// registering it for teardown on first use.
func (c *Client) getSession(namespace string) *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.sessions[namespace]; ok {
		return s
	}

	log := c.logger.With("namespace", namespace)
	s := session.New(namespace, func() transport.Transport {
		return transport.New(c.host, namespace)
	}, c.clientIdentifier, c.clientPasskey, log)

	c.sessions[namespace] = s
	c.closers = append(c.closers, s.Disconnect)
	return s
}

// Close releases every Session in LIFO order. Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closed = true
	return nil
}

// LLM returns a handle for the named model on the llm namespace.
func (c *Client) LLM(modelKey string) *LLMHandle {
	return &LLMHandle{
		session:  c.getSession(NamespaceLLM),
		modelKey: modelKey,
		ttl:      c.defaultTTL,
		log:      c.logger.With("model", modelKey),
	}
}

// Embedding returns a handle for the named embedding model on the
// embedding namespace.
func (c *Client) Embedding(modelKey string) *EmbeddingHandle {
	return &EmbeddingHandle{
		session:  c.getSession(NamespaceEmbedding),
		modelKey: modelKey,
		ttl:      c.defaultTTL,
		log:      c.logger.With("model", modelKey),
	}
}

// AnyLLM returns a handle to whichever LLM is currently loaded,
// picking the first entry from listLoaded (original_source's
// _get_any) — the implicit-model-selection path used when callers
// don't care which model answers, only that one is loaded.
func (c *Client) AnyLLM(ctx context.Context) (*LLMHandle, error) {
	modelKey, err := c.anyLoaded(ctx, NamespaceLLM)
	if err != nil {
		return nil, err
	}
	return c.LLM(modelKey), nil
}

// AnyEmbedding is AnyLLM's embedding-namespace counterpart.
func (c *Client) AnyEmbedding(ctx context.Context) (*EmbeddingHandle, error) {
	modelKey, err := c.anyLoaded(ctx, NamespaceEmbedding)
	if err != nil {
		return nil, err
	}
	return c.Embedding(modelKey), nil
}

func (c *Client) anyLoaded(ctx context.Context, namespace string) (string, error) {
	loaded, err := c.System().ListLoaded(ctx, namespace)
	if err != nil {
		return "", err
	}
	if len(loaded) == 0 {
		return "", &RuntimeError{Detail: "no " + namespace + " models are currently loaded"}
	}
	return loaded[0].ModelKey, nil
}

// Repository returns a handle for model search and download.
func (c *Client) Repository() *RepositoryHandle {
	return &RepositoryHandle{session: c.getSession(NamespaceRepository), log: c.logger}
}

// System returns a handle for system-namespace operations (listing
// loaded/downloaded models).
func (c *Client) System() *SystemHandle {
	return &SystemHandle{session: c.getSession(NamespaceSystem), log: c.logger}
}
