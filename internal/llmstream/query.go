package llmstream

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino/schema"

	"github.com/swissarmyhammer/agentcore/internal/provider"
)

const (
	retryInitialInterval = time.Second
	retryMaxInterval     = 30 * time.Second
	retryMaxElapsedTime  = 2 * time.Minute
	retryMaxAttempts     = 3
)

func newStreamBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.MaxInterval = retryMaxInterval
	b.MaxElapsedTime = retryMaxElapsedTime
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, retryMaxAttempts), ctx)
}

// NewQuery builds a Query bound to one provider/model pair in reg. Opening
// the backend stream is retried with exponential backoff (§4.5
// "reconnection"); once a stream is open its chunks are never retried,
// matching the adapter's forward-only contract.
func NewQuery(reg *provider.Registry, providerID, modelID string, tools []*schema.ToolInfo) Query {
	return func(ctx context.Context, promptText string, context []*schema.Message) (*Stream, error) {
		p, err := reg.Get(providerID)
		if err != nil {
			return nil, err
		}

		messages := append(append([]*schema.Message(nil), context...), &schema.Message{
			Role:    schema.User,
			Content: promptText,
		})

		req := &provider.CompletionRequest{
			Model:    modelID,
			Messages: messages,
			Tools:    tools,
		}

		var cs *provider.CompletionStream
		operation := func() error {
			s, err := p.CreateCompletion(ctx, req)
			if err != nil {
				return err
			}
			cs = s
			return nil
		}
		if err := backoff.Retry(operation, newStreamBackoff(ctx)); err != nil {
			return nil, err
		}

		return NewStream(cs), nil
	}
}
