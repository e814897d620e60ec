package suggest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"smartkb/internal/models"
	"smartkb/internal/progress"
	"smartkb/internal/providers"
)

type fakeEmbedder struct {
	calls  int
	lastIn string
}

func (f *fakeEmbedder) Embed(ctx context.Context, req providers.EmbedRequest) ([][]float32, providers.ProviderInfo, error) {
	f.calls++
	f.lastIn = req.Inputs[0]
	return [][]float32{{0.1, 0.2, 0.3}}, providers.ProviderInfo{Name: "fake-embed"}, nil
}

type fakeSearcher struct {
	results  []models.SearchResult
	lastText string
}

func (f *fakeSearcher) SearchArticles(ctx context.Context, queryVec []float32, queryText string, topK int) ([]models.SearchResult, error) {
	f.lastText = queryText
	return f.results, nil
}

type fakeLLM struct {
	calls      int
	lastPrompt string
	err        error
}

func (f *fakeLLM) Generate(ctx context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error) {
	f.calls++
	f.lastPrompt = req.Prompt
	if f.err != nil {
		return providers.GenerateResponse{}, providers.ProviderInfo{}, f.err
	}
	return providers.GenerateResponse{Text: "1. Do the thing.\n2. Close the case."}, providers.ProviderInfo{Name: "fake-llm"}, nil
}

func newTestOrchestrator(searcher *fakeSearcher, embedder *fakeEmbedder, llm *fakeLLM) *Orchestrator {
	return NewOrchestrator(embedder, searcher, llm, progress.NewEmitter(progress.ModeCoarseProgress, 0), 3, 3)
}

func TestSuggestHappyPath(t *testing.T) {
	searcher := &fakeSearcher{results: []models.SearchResult{
		{ID: "kb-1", Title: "Delayed Flight", KB: "# Delayed Flight\n\nSteps here.", Score: 0.92},
		{ID: "kb-2", Title: "Lost Bag", Score: 0.41},
	}}
	embedder := &fakeEmbedder{}
	llm := &fakeLLM{}
	o := newTestOrchestrator(searcher, embedder, llm)

	res, err := o.Suggest(context.Background(), Request{Title: "Flight delayed 4 hours", Description: "Customer asks about compensation"})
	require.NoError(t, err)
	require.Len(t, res.Matches, 2)
	require.NotEmpty(t, res.Guidance)
	require.Equal(t, 1, embedder.calls)
	require.Equal(t, 1, llm.calls)

	require.Equal(t, "Flight delayed 4 hours Customer asks about compensation", embedder.lastIn)
	require.Contains(t, llm.lastPrompt, "Flight delayed 4 hours##Customer asks about compensation##")
	require.Contains(t, llm.lastPrompt, "# Delayed Flight")
}

func TestSuggestNoMatchesSkipsGuidance(t *testing.T) {
	searcher := &fakeSearcher{}
	llm := &fakeLLM{}
	o := newTestOrchestrator(searcher, &fakeEmbedder{}, llm)

	res, err := o.Suggest(context.Background(), Request{Title: "Obscure issue"})
	require.NoError(t, err)
	require.Empty(t, res.Matches)
	require.Empty(t, res.Guidance)
	require.Equal(t, 0, llm.calls)
}

func TestSuggestGuidanceFailureKeepsMatches(t *testing.T) {
	searcher := &fakeSearcher{results: []models.SearchResult{
		{ID: "kb-1", Title: "Delayed Flight", KB: "# Delayed Flight", Score: 0.92},
	}}
	llm := &fakeLLM{err: errors.New("upstream 500")}
	o := newTestOrchestrator(searcher, &fakeEmbedder{}, llm)

	res, err := o.Suggest(context.Background(), Request{Title: "Flight delayed"})
	require.Error(t, err)
	require.NotNil(t, res)
	require.Len(t, res.Matches, 1)
	require.Equal(t, "kb-1", res.Matches[0].ID)
	require.Empty(t, res.Guidance)
}

func TestSuggestRejectsEmptyCase(t *testing.T) {
	o := newTestOrchestrator(&fakeSearcher{}, &fakeEmbedder{}, &fakeLLM{})
	_, err := o.Suggest(context.Background(), Request{Title: "  ", Description: ""})
	require.Error(t, err)
}
