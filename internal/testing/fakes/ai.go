package fakes

import (
	"context"
	"sync"

	"github.com/avvvet/ganggpt-services/internal/ai"
	"github.com/avvvet/ganggpt-services/internal/archive"
)

// Generator answers every chat with Reply, or fails with Err.
type Generator struct {
	mu       sync.Mutex
	Disabled bool
	Reply    string
	Err      error
	calls    [][]ai.Message
	opts     []ai.Options
}

func (g *Generator) Enabled() bool {
	return !g.Disabled
}

func (g *Generator) Chat(_ context.Context, messages []ai.Message, opts ai.Options) (*ai.Completion, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, messages)
	g.opts = append(g.opts, opts)
	if g.Disabled {
		return nil, ai.ErrDisabled
	}
	if g.Err != nil {
		return nil, g.Err
	}
	return &ai.Completion{Content: g.Reply, FinishReason: "stop", PromptTokens: 100, CompletionTokens: 20}, nil
}

// Calls returns the message lists sent so far.
func (g *Generator) Calls() [][]ai.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([][]ai.Message(nil), g.calls...)
}

func (g *Generator) LastOptions() ai.Options {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.opts) == 0 {
		return ai.Options{}
	}
	return g.opts[len(g.opts)-1]
}

// Archive records saved transcripts.
type Archive struct {
	mu    sync.Mutex
	Err   error
	saved []*archive.Transcript
}

func (a *Archive) Save(_ context.Context, t *archive.Transcript) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Err != nil {
		return a.Err
	}
	a.saved = append(a.saved, t)
	return nil
}

func (a *Archive) Saved() []*archive.Transcript {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*archive.Transcript(nil), a.saved...)
}
