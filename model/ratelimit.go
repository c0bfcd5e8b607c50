package model

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"github.com/hupe1980/agentlite/core"
)

// RateLimitedClient throttles completions of a wrapped client with a token
// bucket. A wait that cannot be satisfied before the context deadline is
// reported as *core.ModelTimeoutError.
type RateLimitedClient struct {
	client  Client
	limiter *rate.Limiter
}

// RateLimited wraps c allowing r completions per second with the given burst.
func RateLimited(c Client, r rate.Limit, burst int) *RateLimitedClient {
	return &RateLimitedClient{client: c, limiter: rate.NewLimiter(r, burst)}
}

// Complete implements Client.
func (c *RateLimitedClient) Complete(ctx context.Context, req Request) (Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return Response{}, err
		}
		return Response{}, &core.ModelTimeoutError{Provider: InfoOf(c.client).Provider, Cause: err}
	}
	return c.client.Complete(ctx, req)
}

// Info implements Describer by forwarding to the wrapped client.
func (c *RateLimitedClient) Info() Info { return InfoOf(c.client) }
