package endpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
)

// LoadModelParams builds the creationParameter for the loadModel /
// getOrLoadModel channel endpoints.
type LoadModelParams struct {
	ModelKey   string
	Identifier string
	// TTLSeconds is nil for "never expire"; spec.md §4.6.1.
	TTLSeconds *int64
	Config     json.RawMessage
}

// WireParam renders the creation payload.
func (p LoadModelParams) WireParam() any {
	m := map[string]any{"modelKey": p.ModelKey}
	if p.Identifier != "" {
		m["identifier"] = p.Identifier
	}
	m["ttlSeconds"] = p.TTLSeconds
	if len(p.Config) > 0 {
		m["config"] = p.Config
	}
	return m
}

type loadModelFrame struct {
	Type       string  `json:"type"`
	Fraction   float64 `json:"fraction"`
	Info       any     `json:"info"`
	Identifier string  `json:"identifier"`
}

// RunLoadModel drives an already-opened channel to completion,
// reporting progress via onProgress (monotonically clamped into
// [0,1]) and returning the server-assigned model identifier.
func RunLoadModel(ctx context.Context, ch receiver, log *slog.Logger, onProgress func(fraction float64)) (string, error) {
	if log == nil {
		log = slog.Default()
	}
	var maxFraction float64

	for {
		raw, err := ch.Recv(ctx)
		if err == io.EOF {
			return "", &RuntimeError{Detail: "loadModel channel closed without a terminal identifier"}
		}
		if err != nil {
			return "", err
		}

		var f loadModelFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			return "", &RuntimeError{Detail: fmt.Sprintf("malformed loadModel frame: %v", err)}
		}

		switch f.Type {
		case "progress":
			maxFraction = min(Monotonic(maxFraction, f.Fraction), 1)
			safeCall(log, "onProgress", func() { onProgress(maxFraction) })
		case "resolved":
			log.Debug("model resolved", "info", f.Info)
		case "success":
			return f.Identifier, nil
		default:
			log.Debug("ignoring unknown loadModel frame", "type", f.Type)
		}
	}
}
