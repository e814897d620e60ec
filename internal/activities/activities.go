package activities

import (
	"context"
	"fmt"
	"path/filepath"

	"smartkb/internal/config"
	"smartkb/internal/kb"
	"smartkb/internal/providers"
	"smartkb/internal/storage"
	"smartkb/internal/util"
	"smartkb/internal/vector"
)

type Activities struct {
	cfg          config.Config
	articleRepo  *storage.ArticleRepo
	runRepo      *storage.RunRepo
	llmAuditRepo *storage.LLMAuditRepo
	providers    *providers.Manager
}

func New(cfg config.Config, db *storage.DB) (*Activities, error) {
	pm, err := providers.NewManager(cfg)
	if err != nil {
		return nil, err
	}
	return &Activities{
		cfg:          cfg,
		articleRepo:  storage.NewArticleRepo(db),
		runRepo:      storage.NewRunRepo(db),
		llmAuditRepo: storage.NewLLMAuditRepo(db),
		providers:    pm,
	}, nil
}

func (a *Activities) SanitizeCasesActivity(ctx context.Context, in SanitizeCasesInput) (SanitizeCasesOutput, error) {
	_ = ctx
	cases := kb.SanitizeCases(in.RawCases)
	if len(cases) == 0 {
		return SanitizeCasesOutput{}, fmt.Errorf("no usable cases after sanitization")
	}
	return SanitizeCasesOutput{Cases: cases}, nil
}

func (a *Activities) LLMGenerateActivity(ctx context.Context, in LLMGenerateInput) (LLMGenerateOutput, error) {
	if in.ProviderRef != "" {
		if idx := a.providers.FindLLMProviderIndex(in.ProviderRef); idx >= 0 {
			in.ProviderIndex = idx
		} else {
			return LLMGenerateOutput{}, fmt.Errorf("llm provider ref not configured in worker: %s", in.ProviderRef)
		}
	}
	provider, ref := a.providers.LLMProviderByIndex(in.ProviderIndex)
	resp, info, err := provider.Generate(ctx, providers.GenerateRequest{
		Operation:   in.Operation,
		System:      in.System,
		Prompt:      in.Prompt,
		Context:     in.Context,
		MaxTokens:   in.MaxTokens,
		Temperature: in.Temperature,
	})
	if err != nil {
		return LLMGenerateOutput{}, fmt.Errorf("llm generate via %s failed: %w", ref.Raw, err)
	}
	return LLMGenerateOutput{
		Text:         resp.Text,
		ProviderName: info.Name,
		Model:        info.Model,
	}, nil
}

func (a *Activities) EmbedTextsActivity(ctx context.Context, in EmbedTextsInput) (EmbedTextsOutput, error) {
	provider, _ := a.providers.EmbedProviderByIndex(in.ProviderIndex)
	vectors, info, err := provider.Embed(ctx, providers.EmbedRequest{
		Operation: in.Operation,
		Inputs:    in.Inputs,
		Dimension: a.cfg.EmbedDim,
	})
	if err != nil {
		return EmbedTextsOutput{}, err
	}
	if len(vectors) == 0 {
		return EmbedTextsOutput{}, fmt.Errorf("embedding provider returned empty vectors")
	}
	return EmbedTextsOutput{Vectors: vectors, ProviderName: info.Name, Model: info.Model}, nil
}

func (a *Activities) UpsertArticleActivity(ctx context.Context, in UpsertArticleInput) error {
	var embedding *string
	if len(in.Vector) > 0 {
		lit := vector.ToLiteral(in.Vector)
		embedding = &lit
	}
	return a.articleRepo.UpsertArticle(ctx, storage.ArticleRecord{
		ID:              in.Article.ID,
		RunID:           in.Article.RunID,
		Title:           util.SanitizeText(in.Article.Title),
		Tags:            in.Article.Tags,
		Status:          in.Article.Status,
		CaseCount:       in.Article.CaseCount,
		ClusterID:       in.Article.ClusterID,
		KB:              util.SanitizeText(in.Article.KB),
		EmbeddingVector: embedding,
	})
}

func (a *Activities) WriteArticleArtifactActivity(ctx context.Context, in WriteArticleArtifactInput) (WriteArticleArtifactOutput, error) {
	_ = ctx
	base := filepath.Join(a.cfg.DataOutRoot, "runs", in.RunID, "articles")
	if err := util.EnsureDir(base); err != nil {
		return WriteArticleArtifactOutput{}, err
	}
	mdPath := filepath.Join(base, in.Article.ID+".md")
	if err := util.WriteTextAtomic(mdPath, in.Article.KB); err != nil {
		return WriteArticleArtifactOutput{}, err
	}
	if err := util.WriteJSONAtomic(filepath.Join(base, in.Article.ID+".json"), in.Article); err != nil {
		return WriteArticleArtifactOutput{}, err
	}
	return WriteArticleArtifactOutput{Path: mdPath}, nil
}

func (a *Activities) CreateRunActivity(ctx context.Context, in CreateRunInput) error {
	return a.runRepo.CreateRun(ctx, in.RunID, in.CaseCount, in.Threshold)
}

func (a *Activities) UpdateRunActivity(ctx context.Context, in UpdateRunInput) error {
	return a.runRepo.UpdateRun(ctx, in.RunID, in.Status, in.Categories, in.Articles, in.Skipped, in.FailReason)
}

func (a *Activities) LogLLMCallActivity(ctx context.Context, in LogLLMCallInput) error {
	return a.llmAuditRepo.Insert(ctx, storage.LLMCallRecord{
		CallID:       in.CallID,
		Operation:    in.Operation,
		RunID:        in.RunID,
		ProviderName: in.ProviderName,
		Model:        in.Model,
		RequestID:    in.RequestID,
		Status:       in.Status,
		ErrorType:    in.ErrorType,
	})
}
