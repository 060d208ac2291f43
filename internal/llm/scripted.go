package llm

import (
	"context"
	"sync"
)

// ScriptedGenerator is an in-memory TextGenerator for tests and dry runs.
// Respond decides the reply for each prompt; every call is recorded.
type ScriptedGenerator struct {
	Respond func(prompt string, strictJSON bool) (string, error)

	mu    sync.Mutex
	calls []ScriptedCall
}

// ScriptedCall records one Generate invocation.
type ScriptedCall struct {
	Prompt     string
	StrictJSON bool
}

// NewScriptedGenerator returns replies in order, repeating the last one once
// the list is exhausted.
func NewScriptedGenerator(replies ...string) *ScriptedGenerator {
	g := &ScriptedGenerator{}
	g.Respond = func(string, bool) (string, error) {
		if len(replies) == 0 {
			return "", nil
		}
		n := len(g.calls) - 1
		if n >= len(replies) {
			n = len(replies) - 1
		}
		return replies[n], nil
	}
	return g
}

func (g *ScriptedGenerator) Backend() string { return "scripted" }

func (g *ScriptedGenerator) Generate(ctx context.Context, prompt string, strictJSON bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &GatewayError{Backend: g.Backend(), Cause: err}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, ScriptedCall{Prompt: prompt, StrictJSON: strictJSON})
	if g.Respond == nil {
		return "", nil
	}
	return g.Respond(prompt, strictJSON)
}

// Calls returns a copy of the recorded invocations.
func (g *ScriptedGenerator) Calls() []ScriptedCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]ScriptedCall(nil), g.calls...)
}
