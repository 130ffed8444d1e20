package lmstudio

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nugget/lmstudio-go/internal/endpoint"
)

// defaultMaxConcurrentTools bounds the worker pool used to dispatch a
// round's tool calls when ActOptions.MaxConcurrentTools is unset.
const defaultMaxConcurrentTools = 4

// ActOptions configures the multi-round tool-use loop (spec.md §4.6.3).
type ActOptions struct {
	// MaxRounds bounds the number of ChatResponse rounds; nil means
	// unlimited.
	MaxRounds *int
	// MaxConcurrentTools bounds the worker pool dispatching one
	// round's tool calls; zero uses defaultMaxConcurrentTools.
	MaxConcurrentTools int
	Params             json.RawMessage

	OnRoundStart          func(round int)
	OnRoundEnd            func(round int)
	OnPredictionCompleted func(res *endpoint.PredictionResult)
	OnMessage             func(content string)
	OnFragment            func(text string, reasoning bool)
	OnToolCall            func(req endpoint.ToolCallRequest)
}

// ActResult is the terminal value of a successful Act call.
type ActResult struct {
	Rounds   int
	Duration time.Duration
}

// Act composes Respond across multiple rounds, dispatching tool calls
// to a bounded worker pool between rounds, per the algorithm in
// spec.md §4.6.3. On the final permitted round no tool definitions are
// sent, so any tool call the model still makes fails validation
// inside the endpoint; Act surfaces that as *InvalidToolRequest
// alongside the result describing how far the loop got.
//
// Act never mutates the caller's history: it works against a private
// clone for the duration of the loop, the same aliasing-safety the
// original implementation gets from "agent_chat = Chat.from_history(chat);
// del chat" — the caller's copy stays exactly as it was passed in.
func (l *LLMHandle) Act(ctx context.Context, history *History, tools []Tool, opts ActOptions) (*ActResult, error) {
	start := time.Now()
	agentHistory := history.Clone()
	toolByName := make(map[string]Tool, len(tools))
	for _, t := range tools {
		toolByName[t.Name] = t
	}

	round := 0
	for {
		finalRound := opts.MaxRounds != nil && round == *opts.MaxRounds-1
		roundTools := tools
		if finalRound {
			roundTools = nil
		}

		safeInvoke(l.log, "onRoundStart", func() {
			if opts.OnRoundStart != nil {
				opts.OnRoundStart(round)
			}
		})

		res, err := l.Respond(ctx, agentHistory, roundTools, ChatOptions{
			Params:      opts.Params,
			OnMessage:   opts.OnMessage,
			OnFragment:  opts.OnFragment,
			OnToolCall:  opts.OnToolCall,
		})
		if err != nil {
			return nil, err
		}

		safeInvoke(l.log, "onPredictionCompleted", func() {
			if opts.OnPredictionCompleted != nil {
				opts.OnPredictionCompleted(res)
			}
		})

		toolResults := dispatchTools(ctx, res.ToolCalls, toolByName, opts.MaxConcurrentTools)
		agentHistory.AppendAssistantResponse(res.Content, res.ToolCalls)
		for i, tc := range res.ToolCalls {
			agentHistory.AppendToolResult(tc.ID, toolResults[i])
		}

		safeInvoke(l.log, "onRoundEnd", func() {
			if opts.OnRoundEnd != nil {
				opts.OnRoundEnd(round)
			}
		})

		if len(res.ToolCalls) == 0 {
			return &ActResult{Rounds: round + 1, Duration: time.Since(start)}, nil
		}
		if finalRound {
			return &ActResult{Rounds: round + 1, Duration: time.Since(start)},
				&InvalidToolRequest{ToolName: res.ToolCalls[0].Name, Reason: "tool use requested on final round"}
		}
		round++
	}
}

// dispatchTools runs every call's implementation concurrently on a
// bounded pool, waits for all of them, and returns the tool-result
// content in the same order as calls — a single tool failure yields
// an error string for that slot rather than aborting the round.
func dispatchTools(ctx context.Context, calls []endpoint.ToolCallRequest, toolByName map[string]Tool, maxConcurrent int) []string {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentTools
	}
	results := make([]string, len(calls))
	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup

	for i, call := range calls {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, call endpoint.ToolCallRequest) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = runTool(ctx, call, toolByName)
		}(i, call)
	}
	wg.Wait()
	return results
}

func runTool(ctx context.Context, call endpoint.ToolCallRequest, toolByName map[string]Tool) string {
	if !call.Valid {
		return call.ErrorMessage
	}
	tool, ok := toolByName[call.Name]
	if !ok || tool.Impl == nil {
		return fmt.Sprintf("tool %q has no implementation", call.Name)
	}
	out, err := tool.Impl(ctx, call.Arguments)
	if err != nil {
		return err.Error()
	}
	return out
}

func safeInvoke(log *slog.Logger, name string, fn func()) {
	if log == nil {
		log = slog.Default()
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("callback panicked, continuing", "callback", name, "panic", r)
		}
	}()
	fn()
}
