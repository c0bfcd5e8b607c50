package model

import (
	"context"
	"strings"

	"github.com/hupe1980/agentlite/core"
)

// Request captures the model input produced by an agent for one reasoning step.
type Request struct {
	Instructions string      `json:"instructions"` // System prompt (role, actions, protocol)
	Task         string      `json:"task"`         // Seeded task header
	Turns        []core.Turn `json:"turns"`        // Memory window, oldest first
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a completed model answer.
type Response struct {
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason,omitempty"`
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Tokens returns the total token count, or 0 when usage is unknown.
func (r Response) Tokens() int {
	if r.Usage == nil {
		return 0
	}
	return r.Usage.TotalTokens
}

// Client is the minimal interface required by agents to drive generation.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "scripted", etc.
}

// Describer is implemented by clients that expose metadata.
type Describer interface {
	Info() Info
}

// InfoOf returns the metadata of c, or a zero Info when c does not describe itself.
func InfoOf(c Client) Info {
	if d, ok := c.(Describer); ok {
		return d.Info()
	}
	return Info{}
}

// FuncClient adapts a plain function to the Client interface.
type FuncClient func(ctx context.Context, req Request) (Response, error)

// Complete implements Client.
func (f FuncClient) Complete(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// Message roles used by chat style providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a provider neutral chat message.
type Message struct {
	Role    string
	Content string
}

// Messages converts a request into an alternating chat transcript: the task
// header opens as a user message, model turns become assistant messages and
// consecutive action/observation turns are folded into one user message.
// Instructions are not included; providers send them as system prompt.
func Messages(req Request) []Message {
	msgs := []Message{{Role: RoleUser, Content: req.Task}}

	var pending []string
	flush := func() {
		if len(pending) == 0 {
			return
		}
		msgs = append(msgs, Message{Role: RoleUser, Content: strings.Join(pending, "\n")})
		pending = nil
	}

	for _, t := range req.Turns {
		switch t.Role {
		case core.RoleModel:
			flush()
			if last := &msgs[len(msgs)-1]; last.Role == RoleAssistant {
				last.Content += "\n" + t.Content
				continue
			}
			msgs = append(msgs, Message{Role: RoleAssistant, Content: t.Content})
		case core.RoleAction:
			pending = append(pending, "Action: "+t.Content)
		default:
			pending = append(pending, "Observation: "+t.Content)
		}
	}
	flush()

	// Providers expect user/assistant alternation; merge adjacent user messages.
	out := msgs[:1]
	for _, m := range msgs[1:] {
		if last := &out[len(out)-1]; last.Role == m.Role {
			last.Content += "\n" + m.Content
			continue
		}
		out = append(out, m)
	}

	return out
}
