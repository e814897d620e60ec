package providers

import (
	"context"

	"golang.org/x/time/rate"
)

// throttledLLM and throttledEmbedder gate upstream calls with a shared
// per-provider rate limiter so burst traffic does not trip quota errors.
type throttledLLM struct {
	inner LLMProvider
	lim   *rate.Limiter
}

type throttledEmbedder struct {
	inner EmbeddingProvider
	lim   *rate.Limiter
}

func throttleLLM(p LLMProvider, rps float64) LLMProvider {
	if rps <= 0 {
		return p
	}
	return &throttledLLM{inner: p, lim: rate.NewLimiter(rate.Limit(rps), burstFor(rps))}
}

func throttleEmbedder(p EmbeddingProvider, rps float64) EmbeddingProvider {
	if rps <= 0 {
		return p
	}
	return &throttledEmbedder{inner: p, lim: rate.NewLimiter(rate.Limit(rps), burstFor(rps))}
}

func burstFor(rps float64) int {
	if rps < 1 {
		return 1
	}
	return int(rps)
}

func (t *throttledLLM) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	if err := t.lim.Wait(ctx); err != nil {
		return GenerateResponse{}, ProviderInfo{}, err
	}
	return t.inner.Generate(ctx, req)
}

func (t *throttledEmbedder) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	if err := t.lim.Wait(ctx); err != nil {
		return nil, ProviderInfo{}, err
	}
	return t.inner.Embed(ctx, req)
}
