package model

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/agentlite/core"
)

// ErrScriptExhausted is returned by ScriptedClient once every step has been consumed.
var ErrScriptExhausted = errors.New("scripted client: no more steps")

// Step is one scripted completion: either a text reply or an error.
type Step struct {
	Text string
	Err  error
}

// Reply returns a step answering with text.
func Reply(text string) Step { return Step{Text: text} }

// Fail returns a step failing with err.
func Fail(err error) Step { return Step{Err: err} }

// ScriptedClient is a deterministic Client returning a fixed sequence of
// steps and recording every request. Useful for tests, examples and replaying
// recorded sessions offline.
type ScriptedClient struct {
	mu       sync.Mutex
	info     Info
	steps    []Step
	next     int
	requests []Request
}

// NewScriptedClient creates a client that plays steps in order.
func NewScriptedClient(steps ...Step) *ScriptedClient {
	return &ScriptedClient{
		info:  Info{Name: "scripted", Provider: "scripted"},
		steps: steps,
	}
}

// NewScriptedReplies is a shorthand for a script of text replies only.
func NewScriptedReplies(texts ...string) *ScriptedClient {
	steps := make([]Step, len(texts))
	for i, t := range texts {
		steps[i] = Reply(t)
	}
	return NewScriptedClient(steps...)
}

// Complete implements Client. A cancelled context fails before a step is consumed.
func (s *ScriptedClient) Complete(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, cloneRequest(req))

	if s.next >= len(s.steps) {
		return Response{}, ErrScriptExhausted
	}
	step := s.steps[s.next]
	s.next++

	if step.Err != nil {
		return Response{}, step.Err
	}
	return Response{Text: step.Text, FinishReason: "stop"}, nil
}

// Requests returns copies of all recorded requests.
func (s *ScriptedClient) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	for i, r := range s.requests {
		out[i] = cloneRequest(r)
	}
	return out
}

// Calls returns the number of Complete invocations that reached the script.
func (s *ScriptedClient) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Remaining returns the number of unconsumed steps.
func (s *ScriptedClient) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steps) - s.next
}

// Info implements Describer.
func (s *ScriptedClient) Info() Info { return s.info }

func cloneRequest(r Request) Request {
	turns := make([]core.Turn, len(r.Turns))
	copy(turns, r.Turns)
	r.Turns = turns
	return r
}
