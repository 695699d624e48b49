package generation

import (
	"context"
	"fmt"
	"time"

	"edugenius/backend/internal/config"
)

// NewInvoker builds the configured backend and wraps it with the retry policy.
func NewInvoker(ctx context.Context, cfg *config.Config) (Invoker, error) {
	g := cfg.Generation

	var backend Invoker
	switch g.Provider {
	case "gemini":
		b, err := NewGeminiBackend(ctx, GeminiOptions{
			APIKey:      g.APIKey,
			Model:       g.Model,
			Temperature: g.Temperature,
			Timeout:     g.Timeout,
		})
		if err != nil {
			return nil, err
		}
		backend = b
	case "http":
		backend = NewHTTPBackend(g.SidecarURL, g.Timeout)
	default:
		return nil, fmt.Errorf("unknown generation provider %q", g.Provider)
	}

	return WithRetry(backend, retryPolicy(cfg)), nil
}

// CallBudget is the longest one Invoke of the invoker built by NewInvoker can take.
func CallBudget(cfg *config.Config) time.Duration {
	return retryPolicy(cfg).Budget(cfg.Generation.Timeout)
}

func retryPolicy(cfg *config.Config) RetryPolicy {
	return RetryPolicy{
		MaxRetries:      cfg.Generation.Retry.MaxRetries,
		InitialInterval: cfg.Generation.Retry.InitialInterval,
		MaxInterval:     cfg.Generation.Retry.MaxInterval,
	}
}
