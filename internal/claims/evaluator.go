package claims

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"smartkb/internal/kb"
	"smartkb/internal/models"
	"smartkb/internal/progress"
	"smartkb/internal/prompts"
	"smartkb/internal/providers"
)

// Receipt is one uploaded receipt image with its declared content type.
type Receipt struct {
	Name        string
	ContentType string
	Data        []byte
}

type Evaluator struct {
	llm         providers.LLMProvider
	emitter     *progress.Emitter
	maxTokens   int
	temperature float64
}

func NewEvaluator(llm providers.LLMProvider, emitter *progress.Emitter, maxTokens int, temperature float64) *Evaluator {
	return &Evaluator{llm: llm, emitter: emitter, maxTokens: maxTokens, temperature: temperature}
}

// Evaluate assesses the uploaded receipts against the policy in a single
// multimodal call, then normalizes the model output into a ClaimResult.
// Zero receipts are rejected locally without spending a model call.
func (e *Evaluator) Evaluate(ctx context.Context, policy string, receipts []Receipt) (*models.ClaimResult, error) {
	tok := e.emitter.Begin(4)
	e.emitter.Section(tok, "Claim Intake")
	if len(receipts) == 0 {
		return nil, fmt.Errorf("no receipt files provided")
	}
	if strings.TrimSpace(policy) == "" {
		return nil, fmt.Errorf("no reimbursement policy available")
	}
	e.emitter.Logf(tok, "claim intake: %d receipt(s)", len(receipts))
	e.emitter.Advance(tok)

	e.emitter.Section(tok, "Receipt Encoding")
	dataURLs := make([]string, len(receipts))
	g, _ := errgroup.WithContext(ctx)
	for i := range receipts {
		i := i
		g.Go(func() error {
			ct := receipts[i].ContentType
			if strings.TrimSpace(ct) == "" {
				ct = "image/jpeg"
			}
			if !strings.HasPrefix(ct, "image/") {
				return fmt.Errorf("receipt %q has unsupported content type %q", receipts[i].Name, ct)
			}
			dataURLs[i] = "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(receipts[i].Data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	e.emitter.Advance(tok)

	e.emitter.Section(tok, "AI Assessment")
	resp, info, err := e.llm.Generate(ctx, providers.GenerateRequest{
		Operation:   "claim_evaluation",
		System:      prompts.ClaimEvaluation,
		Prompt:      "Reimbursement policy:\n\n" + policy,
		Images:      dataURLs,
		MaxTokens:   e.maxTokens,
		Temperature: e.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("claim evaluation call failed: %w", err)
	}
	e.emitter.Logf(tok, "claim assessment from provider=%s model=%s", info.Name, info.Model)
	e.emitter.Advance(tok)

	e.emitter.Section(tok, "Result Normalization")
	res, err := NormalizeResult(resp.Text)
	if err != nil {
		return nil, err
	}
	e.emitter.Advance(tok)
	return res, nil
}

// NormalizeResult recovers a strict ClaimResult from raw model text. The
// pass order is fixed: strip fences, isolate the outer JSON object, repair
// unevaluated addition totals, parse, then validate required fields.
func NormalizeResult(raw string) (*models.ClaimResult, error) {
	text := kb.StripCodeFence(raw)
	obj, ok := ExtractJSONObject(text)
	if !ok {
		return nil, fmt.Errorf("no valid JSON object found in model response")
	}
	obj = RepairNumericTotals(obj)

	var parsed struct {
		Summary        string             `json:"summary"`
		TotalRequested json.RawMessage    `json:"totalRequested"`
		TotalApproved  json.RawMessage    `json:"totalApproved"`
		ValidClaims    []models.ClaimLine `json:"validClaims"`
		InvalidClaims  []models.ClaimLine `json:"invalidClaims"`
	}
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return nil, fmt.Errorf("parse claim result: %w", err)
	}
	if parsed.Summary == "" || parsed.ValidClaims == nil || parsed.InvalidClaims == nil {
		return nil, fmt.Errorf("claim result missing required fields")
	}
	return &models.ClaimResult{
		Summary:        parsed.Summary,
		TotalRequested: coerceTotal(parsed.TotalRequested),
		TotalApproved:  coerceTotal(parsed.TotalApproved),
		ValidClaims:    parsed.ValidClaims,
		InvalidClaims:  parsed.InvalidClaims,
	}, nil
}

// coerceTotal tolerates totals arriving as numbers or numeric strings and
// falls back to 0 for anything else.
func coerceTotal(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := evalAddition(s); err == nil {
			return v
		}
	}
	return 0
}
