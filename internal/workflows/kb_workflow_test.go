package workflows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"

	"smartkb/internal/activities"
	"smartkb/internal/models"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

func rawCases(n int, prefix string) []models.RawCase {
	out := make([]models.RawCase, 0, n)
	for i := 0; i < n; i++ {
		rc := models.RawCase{}
		rc.CaseData.CaseID = fmt.Sprintf("%s-%d", prefix, i)
		rc.CaseData.Title = prefix + " case"
		rc.CaseData.Description = "customer issue"
		out = append(out, rc)
	}
	return out
}

func categoriesJSON(counts map[string]int) string {
	body := ""
	for name, n := range counts {
		ids := ""
		for i := 0; i < n; i++ {
			if ids != "" {
				ids += ","
			}
			ids += fmt.Sprintf("%q", fmt.Sprintf("%s-%d", name, i))
		}
		if body != "" {
			body += ","
		}
		body += fmt.Sprintf(`{"categoryId":%q,"categoryName":%q,"caseIds":[%s]}`, name, name, ids)
	}
	return "[" + body + "]"
}

func articleJSON(name string) string {
	return fmt.Sprintf(`{"id":"kb-%s","title":"%s Guide","tags":["%s"],"status":"draft","caseCount":999,"clusterId":"%s","KB":"# %s\n\nSteps."}`, name, name, name, name, name)
}

type kbTestEnv struct {
	env         *testsuite.TestWorkflowEnvironment
	articleGens *atomic.Int32
	upserts     []activities.UpsertArticleInput
}

func newKBTestEnv(t *testing.T, categorization string, articleErrFor, articleGarbageFor string) *kbTestEnv {
	t.Helper()
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(KBGenerateWorkflow)

	te := &kbTestEnv{env: env, articleGens: &atomic.Int32{}}

	registerActivityName(env, "SanitizeCasesActivity", func(context.Context, activities.SanitizeCasesInput) (activities.SanitizeCasesOutput, error) {
		return activities.SanitizeCasesOutput{}, nil
	})
	registerActivityName(env, "LLMGenerateActivity", func(context.Context, activities.LLMGenerateInput) (activities.LLMGenerateOutput, error) {
		return activities.LLMGenerateOutput{}, nil
	})
	registerActivityName(env, "EmbedTextsActivity", func(context.Context, activities.EmbedTextsInput) (activities.EmbedTextsOutput, error) {
		return activities.EmbedTextsOutput{}, nil
	})
	registerActivityName(env, "UpsertArticleActivity", func(context.Context, activities.UpsertArticleInput) error { return nil })
	registerActivityName(env, "WriteArticleArtifactActivity", func(context.Context, activities.WriteArticleArtifactInput) (activities.WriteArticleArtifactOutput, error) {
		return activities.WriteArticleArtifactOutput{}, nil
	})
	registerActivityName(env, "UpdateRunActivity", func(context.Context, activities.UpdateRunInput) error { return nil })
	registerActivityName(env, "LogLLMCallActivity", func(context.Context, activities.LogLLMCallInput) error { return nil })

	env.OnActivity("SanitizeCasesActivity", mock.Anything, mock.Anything).Return(
		func(_ context.Context, in activities.SanitizeCasesInput) (activities.SanitizeCasesOutput, error) {
			cases := make([]models.Case, 0, len(in.RawCases))
			for _, rc := range in.RawCases {
				cases = append(cases, models.Case{ID: rc.CaseData.CaseID, Title: rc.CaseData.Title, Description: rc.CaseData.Description})
			}
			return activities.SanitizeCasesOutput{Cases: cases}, nil
		})
	env.OnActivity("LLMGenerateActivity", mock.Anything, mock.Anything).Return(
		func(_ context.Context, in activities.LLMGenerateInput) (activities.LLMGenerateOutput, error) {
			switch in.Operation {
			case "categorize_cases":
				return activities.LLMGenerateOutput{Text: categorization, ProviderName: "mock", Model: "mock"}, nil
			case "generate_article":
				te.articleGens.Add(1)
				name := categoryFromPayload(in.Prompt)
				if articleErrFor != "" && name == articleErrFor {
					return activities.LLMGenerateOutput{}, errors.New("permanent model refusal")
				}
				if articleGarbageFor != "" && name == articleGarbageFor {
					return activities.LLMGenerateOutput{Text: "I cannot write an article for these cases.", ProviderName: "mock", Model: "mock"}, nil
				}
				return activities.LLMGenerateOutput{Text: articleJSON(name), ProviderName: "mock", Model: "mock"}, nil
			}
			return activities.LLMGenerateOutput{}, fmt.Errorf("unexpected operation %s", in.Operation)
		})
	env.OnActivity("EmbedTextsActivity", mock.Anything, mock.Anything).Return(
		activities.EmbedTextsOutput{Vectors: [][]float32{{0.1, 0.2}}, ProviderName: "mock", Model: "mock"}, nil)
	env.OnActivity("UpsertArticleActivity", mock.Anything, mock.Anything).Return(
		func(_ context.Context, in activities.UpsertArticleInput) error {
			te.upserts = append(te.upserts, in)
			return nil
		})
	env.OnActivity("WriteArticleArtifactActivity", mock.Anything, mock.Anything).Return(activities.WriteArticleArtifactOutput{Path: "/tmp/a.md"}, nil)
	env.OnActivity("UpdateRunActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("LogLLMCallActivity", mock.Anything, mock.Anything).Return(nil)
	return te
}

// categoryFromPayload pulls categoryName out of the drafting payload without
// a full decode; test inputs always embed it as a plain JSON string.
func categoryFromPayload(prompt string) string {
	const key = `"categoryName":"`
	i := strings.Index(prompt, key)
	if i < 0 {
		return ""
	}
	rest := prompt[i+len(key):]
	j := strings.Index(rest, `"`)
	if j < 0 {
		return ""
	}
	return rest[:j]
}

func TestKBGenerateWorkflowTwoClusters(t *testing.T) {
	cases := append(rawCases(7, "delay"), rawCases(5, "baggage")...)
	te := newKBTestEnv(t, categoriesJSON(map[string]int{"delay": 7, "baggage": 5}), "", "")

	te.env.ExecuteWorkflow(KBGenerateWorkflow, KBGenerateInput{RunID: "run-1", RawCases: cases, Threshold: 5, LLMProviders: 1, EmbedProviders: 1, CooldownSeconds: 10})
	require.True(t, te.env.IsWorkflowCompleted())
	require.NoError(t, te.env.GetWorkflowError())

	var out string
	require.NoError(t, te.env.GetWorkflowResult(&out))
	require.Equal(t, "completed", out)
	require.Equal(t, int32(2), te.articleGens.Load())
	require.Len(t, te.upserts, 2)
}

func TestKBGenerateWorkflowThresholdSkipsSmallClusters(t *testing.T) {
	cases := append(rawCases(3, "seat"), append(rawCases(5, "delay"), rawCases(7, "baggage")...)...)
	te := newKBTestEnv(t, categoriesJSON(map[string]int{"seat": 3, "delay": 5, "baggage": 7}), "", "")

	te.env.ExecuteWorkflow(KBGenerateWorkflow, KBGenerateInput{RunID: "run-2", RawCases: cases, Threshold: 5, LLMProviders: 1, EmbedProviders: 1, CooldownSeconds: 10})
	require.True(t, te.env.IsWorkflowCompleted())
	require.NoError(t, te.env.GetWorkflowError())

	require.Equal(t, int32(2), te.articleGens.Load())
	require.Len(t, te.upserts, 2)
	for _, up := range te.upserts {
		require.Equal(t, "run-2", up.Article.RunID)
		switch up.Article.ClusterID {
		case "delay":
			require.Equal(t, 5, up.Article.CaseCount)
		case "baggage":
			require.Equal(t, 7, up.Article.CaseCount)
		default:
			t.Fatalf("unexpected cluster %q", up.Article.ClusterID)
		}
	}
}

func TestKBGenerateWorkflowUnparseableCategorizationFails(t *testing.T) {
	te := newKBTestEnv(t, "I cannot categorize these cases.", "", "")

	te.env.ExecuteWorkflow(KBGenerateWorkflow, KBGenerateInput{RunID: "run-3", RawCases: rawCases(6, "delay"), Threshold: 5, LLMProviders: 1, EmbedProviders: 1, CooldownSeconds: 10})
	require.True(t, te.env.IsWorkflowCompleted())
	require.NoError(t, te.env.GetWorkflowError())

	var out string
	require.NoError(t, te.env.GetWorkflowResult(&out))
	require.Equal(t, "failed", out)
	require.Empty(t, te.upserts)
}

func TestKBGenerateWorkflowGenerationFailureFailsRunKeepsEarlierArticles(t *testing.T) {
	// Ordered array so the baggage article is persisted before the delay
	// generation call errors out.
	categorization := `[` +
		`{"categoryId":"baggage","categoryName":"baggage","caseIds":["baggage-0","baggage-1","baggage-2","baggage-3","baggage-4","baggage-5"]},` +
		`{"categoryId":"delay","categoryName":"delay","caseIds":["delay-0","delay-1","delay-2","delay-3","delay-4","delay-5"]}]`
	cases := append(rawCases(6, "baggage"), rawCases(6, "delay")...)
	te := newKBTestEnv(t, categorization, "delay", "")

	te.env.ExecuteWorkflow(KBGenerateWorkflow, KBGenerateInput{RunID: "run-4", RawCases: cases, Threshold: 5, LLMProviders: 1, EmbedProviders: 1, CooldownSeconds: 10})
	require.True(t, te.env.IsWorkflowCompleted())
	require.NoError(t, te.env.GetWorkflowError())

	var out string
	require.NoError(t, te.env.GetWorkflowResult(&out))
	require.Equal(t, "failed", out)
	require.Len(t, te.upserts, 1)
	require.Equal(t, "baggage", te.upserts[0].Article.ClusterID)
}

func TestKBGenerateWorkflowUnparseableArticleSkipsCluster(t *testing.T) {
	cases := append(rawCases(6, "delay"), rawCases(6, "baggage")...)
	te := newKBTestEnv(t, categoriesJSON(map[string]int{"delay": 6, "baggage": 6}), "", "delay")

	te.env.ExecuteWorkflow(KBGenerateWorkflow, KBGenerateInput{RunID: "run-5", RawCases: cases, Threshold: 5, LLMProviders: 1, EmbedProviders: 1, CooldownSeconds: 10})
	require.True(t, te.env.IsWorkflowCompleted())
	require.NoError(t, te.env.GetWorkflowError())

	var out string
	require.NoError(t, te.env.GetWorkflowResult(&out))
	require.Equal(t, "completed", out)
	require.Len(t, te.upserts, 1)
	require.Equal(t, "baggage", te.upserts[0].Article.ClusterID)
}
