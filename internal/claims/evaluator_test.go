package claims

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"smartkb/internal/progress"
	"smartkb/internal/providers"
)

type scriptedLLM struct {
	calls int
	text  string
	req   providers.GenerateRequest
}

func (s *scriptedLLM) Generate(ctx context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error) {
	s.calls++
	s.req = req
	return providers.GenerateResponse{Text: s.text}, providers.ProviderInfo{Name: "scripted"}, nil
}

func TestEvaluateRejectsZeroReceiptsLocally(t *testing.T) {
	llm := &scriptedLLM{text: "{}"}
	e := NewEvaluator(llm, progress.NewEmitter(progress.ModeCoarseProgress, 0), 4096, 0.7)

	_, err := e.Evaluate(context.Background(), "policy text", nil)
	require.Error(t, err)
	require.Equal(t, 0, llm.calls)
}

func TestEvaluateEncodesReceiptsAsDataURLs(t *testing.T) {
	llm := &scriptedLLM{text: `{"summary":"ok","totalRequested":1,"totalApproved":1,"validClaims":[],"invalidClaims":[]}`}
	e := NewEvaluator(llm, progress.NewEmitter(progress.ModeCoarseProgress, 0), 4096, 0.7)

	receipts := []Receipt{
		{Name: "a.png", ContentType: "image/png", Data: []byte{1, 2, 3}},
		{Name: "b.jpg", ContentType: "", Data: []byte{4, 5}},
	}
	res, err := e.Evaluate(context.Background(), "policy text", receipts)
	require.NoError(t, err)
	require.Equal(t, "ok", res.Summary)
	require.Len(t, llm.req.Images, 2)
	require.Contains(t, llm.req.Images[0], "data:image/png;base64,")
	require.Contains(t, llm.req.Images[1], "data:image/jpeg;base64,")
	require.Equal(t, 4096, llm.req.MaxTokens)
}

func TestEvaluateRejectsNonImageReceipt(t *testing.T) {
	llm := &scriptedLLM{text: "{}"}
	e := NewEvaluator(llm, progress.NewEmitter(progress.ModeCoarseProgress, 0), 4096, 0.7)

	_, err := e.Evaluate(context.Background(), "policy", []Receipt{{Name: "doc.pdf", ContentType: "application/pdf"}})
	require.Error(t, err)
	require.Equal(t, 0, llm.calls)
}

func TestEvaluateEmitsSectionLog(t *testing.T) {
	llm := &scriptedLLM{text: `{"summary":"ok","totalRequested":1,"totalApproved":1,"validClaims":[],"invalidClaims":[]}`}
	emitter := progress.NewEmitter(progress.ModeDetailedLog, 0)
	e := NewEvaluator(llm, emitter, 4096, 0.7)

	_, err := e.Evaluate(context.Background(), "policy text", []Receipt{{Name: "a.png", ContentType: "image/png", Data: []byte{1}}})
	require.NoError(t, err)

	snap := emitter.Snapshot()
	require.Equal(t, 4, snap.Done)
	require.Contains(t, snap.Lines, "=== Section: Claim Intake ===")
	require.Contains(t, snap.Lines, "=== Section: AI Assessment ===")
	require.Contains(t, snap.Lines, "=== Section: Result Normalization ===")
	require.Contains(t, snap.Lines, "claim intake: 1 receipt(s)")
}

func TestNormalizeResult_RepairsAndParses(t *testing.T) {
	raw := "```json\n" + `{"summary":"assessed","totalRequested": 10.00 + 5.50 + 2.09,"totalApproved": 10.00,"validClaims":[{"item":"meal","price":10,"reason":"ok"}],"invalidClaims":[]}` + "\n```"
	res, err := NormalizeResult(raw)
	require.NoError(t, err)
	require.InDelta(t, 17.59, res.TotalRequested, 0.001)
	require.InDelta(t, 10.00, res.TotalApproved, 0.001)
	require.Len(t, res.ValidClaims, 1)
}

func TestNormalizeResult_FencedAndUnfencedAgree(t *testing.T) {
	body := `{"summary":"s","totalRequested":5,"totalApproved":5,"validClaims":[],"invalidClaims":[]}`
	a, err := NormalizeResult(body)
	require.NoError(t, err)
	b, err := NormalizeResult("```json\n" + body + "\n```")
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestNormalizeResult_MissingFields(t *testing.T) {
	_, err := NormalizeResult(`{"summary":"s","totalRequested":1,"totalApproved":1,"validClaims":[]}`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing required fields")
}

func TestNormalizeResult_NoJSONObject(t *testing.T) {
	_, err := NormalizeResult("I could not read the receipts.")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no valid JSON object")
}

func TestNormalizeResult_SurroundingProse(t *testing.T) {
	raw := `Sure! Here is the assessment: {"summary":"s","totalRequested":2.5,"totalApproved":0,"validClaims":[],"invalidClaims":[{"item":"wine","price":2.5,"reason":"excluded"}]} Hope that helps.`
	res, err := NormalizeResult(raw)
	require.NoError(t, err)
	require.InDelta(t, 2.5, res.TotalRequested, 0.001)
	require.Len(t, res.InvalidClaims, 1)
}
