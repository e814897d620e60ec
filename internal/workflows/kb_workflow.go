package workflows

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"smartkb/internal/activities"
	"smartkb/internal/kb"
	"smartkb/internal/models"
	"smartkb/internal/prompts"
	"smartkb/internal/providers"
)

const QueryGetRunProgress = "GetRunProgress"

type providerState struct {
	disabledUntil map[int]time.Time
}

func newProviderState() providerState {
	return providerState{disabledUntil: map[int]time.Time{}}
}

// KBGenerateWorkflow turns a batch of resolved cases into knowledge base
// articles: sanitize, categorize, then draft and persist one article per
// category that clears the case-count threshold. Output that does not parse
// as an article skips that category; a failed generation, embedding, or
// storage call fails the run and keeps what was already persisted.
func KBGenerateWorkflow(ctx workflow.Context, input KBGenerateInput) (string, error) {
	progress := RunProgress{
		RunID:          input.RunID,
		Status:         "running",
		TotalCases:     len(input.RawCases),
		CategoryStatus: map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetRunProgress, func() (RunProgress, error) {
		return progress, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    2,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	_ = workflow.ExecuteActivity(ctx, "UpdateRunActivity", activities.UpdateRunInput{RunID: input.RunID, Status: "running"}).Get(ctx, nil)

	llmProviders := defaultCount(input.LLMProviders)
	embedProviders := defaultCount(input.EmbedProviders)
	cooldown := durationOrDefault(input.CooldownSeconds, 900)
	threshold := input.Threshold
	if threshold <= 0 {
		threshold = 5
	}
	llmState := newProviderState()
	embedState := newProviderState()

	var sanitized activities.SanitizeCasesOutput
	if err := workflow.ExecuteActivity(ctx, "SanitizeCasesActivity", activities.SanitizeCasesInput{RawCases: input.RawCases}).Get(ctx, &sanitized); err != nil {
		return failRun(ctx, &progress, input.RunID, "sanitize cases: "+err.Error())
	}

	casesJSON, err := json.Marshal(sanitized.Cases)
	if err != nil {
		return failRun(ctx, &progress, input.RunID, "encode cases: "+err.Error())
	}
	catOut, _, err := callLLMWithFailover(ctx, &llmState, llmProviders, cooldown, activities.LLMGenerateInput{
		Operation:   "categorize_cases",
		RunID:       input.RunID,
		System:      prompts.Categorization,
		Prompt:      string(casesJSON),
		MaxTokens:   input.MaxTokens,
		Temperature: input.Temperature,
	}, nil)
	if err != nil {
		return failRun(ctx, &progress, input.RunID, "categorize cases: "+err.Error())
	}
	categories := kb.ParseCategories(catOut.Text)
	if categories == nil {
		return failRun(ctx, &progress, input.RunID, "could not parse categorization output")
	}
	progress.TotalCategories = len(categories)

	logger := workflow.GetLogger(ctx)
	for _, cat := range categories {
		if len(cat.CaseIDs) < threshold {
			progress.Skipped++
			progress.CategoryStatus[cat.CategoryName] = "skipped"
			logger.Info("category below threshold, skipping",
				"category", cat.CategoryName, "cases", len(cat.CaseIDs), "threshold", threshold)
			continue
		}
		progress.CategoryStatus[cat.CategoryName] = "drafting"

		clusterCases := kb.FilterCasesByID(sanitized.Cases, cat.CaseIDs)
		article, genErr := draftArticle(ctx, &llmState, llmProviders, cooldown, input, cat, clusterCases)
		if genErr != nil {
			progress.CategoryStatus[cat.CategoryName] = "failed"
			if errors.Is(genErr, errArticleUnparseable) {
				logger.Warn("article output unparseable, skipping category", "category", cat.CategoryName, "error", genErr)
				continue
			}
			return failRun(ctx, &progress, input.RunID, "draft article for "+cat.CategoryName+": "+genErr.Error())
		}

		eo, embedErr := callEmbedWithFailover(ctx, &embedState, embedProviders, cooldown, activities.EmbedTextsInput{
			Operation: "embed_article",
			RunID:     input.RunID,
			Inputs:    []string{article.Title + "\n\n" + article.KB},
		}, nil)
		if embedErr != nil {
			progress.CategoryStatus[cat.CategoryName] = "failed"
			return failRun(ctx, &progress, input.RunID, "embed article for "+cat.CategoryName+": "+embedErr.Error())
		}

		if err := workflow.ExecuteActivity(ctx, "UpsertArticleActivity", activities.UpsertArticleInput{
			Article: *article,
			Vector:  eo.Vectors[0],
		}).Get(ctx, nil); err != nil {
			progress.CategoryStatus[cat.CategoryName] = "failed"
			return failRun(ctx, &progress, input.RunID, "persist article for "+cat.CategoryName+": "+err.Error())
		}
		_ = workflow.ExecuteActivity(ctx, "WriteArticleArtifactActivity", activities.WriteArticleArtifactInput{
			RunID:   input.RunID,
			Article: *article,
		}).Get(ctx, nil)

		progress.Articles++
		progress.CategoryStatus[cat.CategoryName] = "done"
	}

	progress.Status = "completed"
	_ = workflow.ExecuteActivity(ctx, "UpdateRunActivity", activities.UpdateRunInput{
		RunID:      input.RunID,
		Status:     "completed",
		Categories: progress.TotalCategories,
		Articles:   progress.Articles,
		Skipped:    progress.Skipped,
	}).Get(ctx, nil)
	return progress.Status, nil
}

// errArticleUnparseable marks model output that cannot be read as an
// article. It is recoverable: the category is skipped and the run goes on,
// unlike a failed generation call, which fails the run.
var errArticleUnparseable = errors.New("unparseable article output")

// draftArticle runs one article generation call and normalizes the output.
// The article's case count always reflects the category membership, not
// whatever count the model reported.
func draftArticle(ctx workflow.Context, state *providerState, llmProviders int, cooldown time.Duration, input KBGenerateInput, cat models.Category, clusterCases []models.Case) (*models.KBArticle, error) {
	payload, err := json.Marshal(map[string]any{
		"category": cat,
		"cases":    clusterCases,
	})
	if err != nil {
		return nil, fmt.Errorf("encode cluster payload: %w", err)
	}
	out, _, err := callLLMWithFailover(ctx, state, llmProviders, cooldown, activities.LLMGenerateInput{
		Operation:   "generate_article",
		RunID:       input.RunID,
		System:      prompts.KBGeneration,
		Prompt:      string(payload),
		MaxTokens:   input.MaxTokens,
		Temperature: input.Temperature,
	}, nil)
	if err != nil {
		return nil, err
	}
	article := kb.ParseArticle(out.Text)
	if article == nil {
		return nil, fmt.Errorf("%w for category %s", errArticleUnparseable, cat.CategoryName)
	}
	article.RunID = input.RunID
	article.CaseCount = len(cat.CaseIDs)
	if article.ClusterID == "" {
		article.ClusterID = cat.CategoryID
	}
	if article.ID == "" {
		article.ID = "kb-" + sanitizeID(cat.CategoryID+"-"+input.RunID)
	}
	return article, nil
}

func failRun(ctx workflow.Context, progress *RunProgress, runID, reason string) (string, error) {
	progress.Status = "failed"
	progress.FailReason = reason
	_ = workflow.ExecuteActivity(ctx, "UpdateRunActivity", activities.UpdateRunInput{
		RunID:      runID,
		Status:     "failed",
		Categories: progress.TotalCategories,
		Articles:   progress.Articles,
		Skipped:    progress.Skipped,
		FailReason: reason,
	}).Get(ctx, nil)
	return progress.Status, nil
}

func callLLMWithFailover(ctx workflow.Context, state *providerState, providerCount int, cooldown time.Duration, input activities.LLMGenerateInput, retryCounts map[string]int) (activities.LLMGenerateOutput, string, error) {
	if retryCounts == nil {
		retryCounts = map[string]int{}
	}
	var lastErr error
	for attempt := 0; attempt < providerCount*4; attempt++ {
		idx := attempt % providerCount
		if isProviderDisabled(ctx, state, idx) {
			continue
		}
		input.ProviderIndex = idx
		var out activities.LLMGenerateOutput
		err := workflow.ExecuteActivity(ctx, "LLMGenerateActivity", input).Get(ctx, &out)
		if err == nil {
			_ = workflow.ExecuteActivity(ctx, "LogLLMCallActivity", activities.LogLLMCallInput{Operation: input.Operation, RunID: input.RunID, ProviderName: out.ProviderName, Model: out.Model, RequestID: fmt.Sprintf("%s-%d", input.Operation, attempt), Status: "ok"}).Get(ctx, nil)
			return out, "", nil
		}
		lastErr = err
		errType := providers.ClassifyError(err)
		_ = workflow.ExecuteActivity(ctx, "LogLLMCallActivity", activities.LogLLMCallInput{Operation: input.Operation, RunID: input.RunID, ProviderName: fmt.Sprintf("provider-%d", idx), RequestID: fmt.Sprintf("%s-%d", input.Operation, attempt), Status: "failed", ErrorType: string(errType)}).Get(ctx, nil)
		key := fmt.Sprintf("llm-%s-%d", input.Operation, idx)
		retryCounts[key]++
		switch errType {
		case providers.ErrorQuota:
			disableProviderUntil(ctx, state, idx, cooldown)
		case providers.ErrorRate:
			if retryCounts[key] <= 2 {
				workflow.Sleep(ctx, time.Duration(retryCounts[key]*2)*time.Second)
				attempt--
			} else {
				disableProviderUntil(ctx, state, idx, 2*time.Minute)
			}
		case providers.ErrorTransient:
			if retryCounts[key] <= 2 {
				workflow.Sleep(ctx, time.Duration(retryCounts[key])*time.Second)
				attempt--
			}
		case providers.ErrorContext:
			return activities.LLMGenerateOutput{}, string(providers.ErrorContext), err
		default:
			disableProviderUntil(ctx, state, idx, time.Minute)
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("all llm providers exhausted")
	}
	return activities.LLMGenerateOutput{}, string(providers.ClassifyError(lastErr)), lastErr
}

func callEmbedWithFailover(ctx workflow.Context, state *providerState, providerCount int, cooldown time.Duration, input activities.EmbedTextsInput, retryCounts map[string]int) (activities.EmbedTextsOutput, error) {
	if retryCounts == nil {
		retryCounts = map[string]int{}
	}
	var lastErr error
	for attempt := 0; attempt < providerCount*4; attempt++ {
		idx := attempt % providerCount
		if isProviderDisabled(ctx, state, idx) {
			continue
		}
		input.ProviderIndex = idx
		var out activities.EmbedTextsOutput
		err := workflow.ExecuteActivity(ctx, "EmbedTextsActivity", input).Get(ctx, &out)
		if err == nil {
			return out, nil
		}
		lastErr = err
		errType := providers.ClassifyError(err)
		key := fmt.Sprintf("embed-%d", idx)
		retryCounts[key]++
		switch errType {
		case providers.ErrorQuota:
			disableProviderUntil(ctx, state, idx, cooldown)
		case providers.ErrorRate, providers.ErrorTransient:
			if retryCounts[key] <= 2 {
				workflow.Sleep(ctx, time.Duration(retryCounts[key])*time.Second)
				attempt--
			} else {
				disableProviderUntil(ctx, state, idx, 2*time.Minute)
			}
		default:
			disableProviderUntil(ctx, state, idx, time.Minute)
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("all embed providers exhausted")
	}
	return activities.EmbedTextsOutput{}, lastErr
}

func isProviderDisabled(ctx workflow.Context, state *providerState, idx int) bool {
	until, ok := state.disabledUntil[idx]
	if !ok {
		return false
	}
	return workflow.Now(ctx).Before(until)
}

func disableProviderUntil(ctx workflow.Context, state *providerState, idx int, d time.Duration) {
	state.disabledUntil[idx] = workflow.Now(ctx).Add(d)
}

func sanitizeID(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		default:
			out = append(out, '-')
		}
	}
	return string(out)
}

func durationOrDefault(seconds int, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}

func defaultCount(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}
