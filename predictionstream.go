package lmstudio

import (
	"context"
	"log/slog"

	"github.com/nugget/lmstudio-go/internal/endpoint"
	"github.com/nugget/lmstudio-go/internal/session"
)

// PredictionStream is the non-blocking handle for an in-flight
// prediction (spec.md §2 item 6). The state machine runs in its own
// goroutine from the moment the channel opens; Wait blocks for the
// terminal result and Cancel requests early termination.
type PredictionStream struct {
	ch     *session.Channel
	result chan predictionOutcome
}

type predictionOutcome struct {
	res *endpoint.PredictionResult
	err error
}

func newPredictionStream(ctx context.Context, ch *session.Channel, log *slog.Logger, cfg endpoint.PredictionConfig) *PredictionStream {
	ps := &PredictionStream{ch: ch, result: make(chan predictionOutcome, 1)}
	go func() {
		res, err := endpoint.RunPrediction(ctx, ch, log, cfg)
		ps.result <- predictionOutcome{res: res, err: err}
	}()
	return ps
}

// Cancel requests early termination; idempotent, non-blocking.
func (p *PredictionStream) Cancel() {
	p.ch.Cancel()
}

// Wait blocks for the terminal result, or returns ctx.Err() if ctx is
// done first (the state machine goroutine keeps running either way —
// call Cancel first if abandoning the prediction).
func (p *PredictionStream) Wait(ctx context.Context) (*endpoint.PredictionResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case o := <-p.result:
		return o.res, o.err
	}
}

// ID returns the underlying channel id, useful for correlating logs.
func (p *PredictionStream) ID() int64 {
	return p.ch.ID()
}
