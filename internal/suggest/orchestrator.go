// Package suggest runs the knowledge base suggestion flow for one open case:
// embed the case text, retrieve candidate articles, and produce step-by-step
// agent guidance from the best match.
package suggest

import (
	"context"
	"fmt"
	"strings"

	"smartkb/internal/models"
	"smartkb/internal/progress"
	"smartkb/internal/prompts"
	"smartkb/internal/providers"
	"smartkb/internal/util"
)

type ArticleSearcher interface {
	SearchArticles(ctx context.Context, queryVec []float32, queryText string, topK int) ([]models.SearchResult, error)
}

type Request struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Result struct {
	Matches  []models.SearchResult  `json:"matches"`
	Guidance string                 `json:"guidance,omitempty"`
	Provider providers.ProviderInfo `json:"provider,omitempty"`
}

type Orchestrator struct {
	embedder providers.EmbeddingProvider
	searcher ArticleSearcher
	llm      providers.LLMProvider
	emitter  *progress.Emitter
	embedDim int
	topK     int
}

func NewOrchestrator(embedder providers.EmbeddingProvider, searcher ArticleSearcher, llm providers.LLMProvider, emitter *progress.Emitter, embedDim, topK int) *Orchestrator {
	return &Orchestrator{
		embedder: embedder,
		searcher: searcher,
		llm:      llm,
		emitter:  emitter,
		embedDim: embedDim,
		topK:     topK,
	}
}

// Suggest runs the five stages for one case. Retrieval misses return an
// empty result rather than an error; the caller decides how to surface that.
func (o *Orchestrator) Suggest(ctx context.Context, req Request) (*Result, error) {
	tok := o.emitter.Begin(5)

	o.emitter.Section(tok, "Initialization")
	title := strings.TrimSpace(req.Title)
	description := strings.TrimSpace(req.Description)
	if title == "" && description == "" {
		return nil, fmt.Errorf("case title and description are both empty")
	}
	o.emitter.Logf(tok, "case intake: title=%q", util.DisplayTitle(title, 100))
	o.emitter.Advance(tok)

	o.emitter.Section(tok, "Embedding")
	queryText := strings.TrimSpace(title + " " + description)
	vectors, embedInfo, err := o.embedder.Embed(ctx, providers.EmbedRequest{
		Operation: "suggest_query",
		Inputs:    []string{queryText},
		Dimension: o.embedDim,
	})
	if err != nil {
		return nil, fmt.Errorf("embed case text: %w", err)
	}
	o.emitter.Logf(tok, "embedded query via provider=%s model=%s", embedInfo.Name, embedInfo.Model)
	o.emitter.Advance(tok)

	o.emitter.Section(tok, "Search")
	matches, err := o.searcher.SearchArticles(ctx, vectors[0], queryText, o.topK)
	if err != nil {
		return nil, fmt.Errorf("search articles: %w", err)
	}
	o.emitter.Logf(tok, "retrieved %d candidate article(s)", len(matches))
	o.emitter.Advance(tok)

	o.emitter.Section(tok, "Analysis")
	if len(matches) == 0 {
		o.emitter.Logf(tok, "no relevant article found")
		o.emitter.Advance(tok)
		return &Result{Matches: []models.SearchResult{}}, nil
	}
	best := matches[0]
	o.emitter.Logf(tok, "best match %s (score %.3f)", best.ID, best.Score)
	o.emitter.Advance(tok)

	o.emitter.Section(tok, "AI Guidance")
	resp, llmInfo, err := o.llm.Generate(ctx, providers.GenerateRequest{
		Operation: "guidance",
		System:    prompts.StepByStepGuidance,
		Prompt:    prompts.BuildGuidancePrompt(title, description, best.KB),
	})
	if err != nil {
		// The hits were already retrieved; surface them alongside the error
		// instead of discarding the work done so far.
		o.emitter.Logf(tok, "guidance generation failed: %v", err)
		return &Result{Matches: matches}, fmt.Errorf("generate guidance: %w", err)
	}
	o.emitter.Advance(tok)

	return &Result{Matches: matches, Guidance: strings.TrimSpace(resp.Text), Provider: llmInfo}, nil
}
