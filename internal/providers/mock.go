package providers

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"strings"
)

// MockProvider returns deterministic output shaped for each pipeline
// operation so the whole system runs without keys.
type MockProvider struct {
	dim int
}

func NewMockProvider(dim int) *MockProvider {
	if dim <= 0 {
		dim = 1536
	}
	return &MockProvider{dim: dim}
}

func (m *MockProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	_ = ctx
	dim := req.Dimension
	if dim <= 0 {
		dim = m.dim
	}
	vectors := make([][]float32, 0, len(req.Inputs))
	for _, input := range req.Inputs {
		vectors = append(vectors, deterministicVector(input, dim))
	}
	return vectors, ProviderInfo{Name: "mock", Model: fmt.Sprintf("mock-embed-%d", dim), Key: "mock"}, nil
}

var (
	mockCaseIDPattern   = regexp.MustCompile(`"id":"([^"]+)"`)
	mockCategoryPattern = regexp.MustCompile(`"categoryName":"([^"]+)"`)
)

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	_ = ctx
	op := strings.ToLower(req.Operation)
	info := ProviderInfo{Name: "mock", Model: "mock-llm-v1", Key: "mock"}
	switch {
	case strings.Contains(op, "categorize"):
		ids := mockCaseIDPattern.FindAllStringSubmatch(req.Prompt, -1)
		quoted := make([]string, 0, len(ids))
		for _, mm := range ids {
			quoted = append(quoted, `"`+mm[1]+`"`)
		}
		text := `[{"categoryId":"GI","categoryName":"General Inquiry","caseIds":[` + strings.Join(quoted, ",") + `]}]`
		return GenerateResponse{Text: text}, info, nil
	case strings.Contains(op, "article"):
		name := "General Inquiry"
		if mm := mockCategoryPattern.FindStringSubmatch(req.Prompt); mm != nil {
			name = mm[1]
		}
		text := "```json\n" + fmt.Sprintf(
			`{"id":"kb-mock-%s","title":"%s","tags":["%s"],"status":"draft","caseCount":0,"clusterId":"mock","KB":"# %s\n\n## Resolution Steps\n1. Verify the booking.\n2. Apply the standard remedy."}`,
			sanitizeMockID(name), name, strings.ToLower(name), name) + "\n```"
		return GenerateResponse{Text: text}, info, nil
	case strings.Contains(op, "guidance"):
		return GenerateResponse{Text: "1. Confirm the customer's booking details.\n2. Follow the matched article:\n   - apply the listed remedy\n   - record the outcome\n3. Close the case with a summary note."}, info, nil
	case strings.Contains(op, "claim"):
		text := `{"summary":"Deterministic mock claim assessment.","totalRequested": 10.00 + 5.50 + 2.09,"totalApproved": 10.00,"validClaims":[{"item":"meal","price":10.00,"reason":"within policy limit"}],"invalidClaims":[{"item":"alcohol","price":7.59,"reason":"excluded by policy"}]}`
		return GenerateResponse{Text: text}, info, nil
	default:
		return GenerateResponse{Text: "Mock response."}, info, nil
	}
}

func sanitizeMockID(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "-")
	return s
}

func deterministicVector(input string, dim int) []float32 {
	vec := make([]float32, dim)
	seed := []byte(input)
	if len(seed) == 0 {
		seed = []byte("empty")
	}
	for i := 0; i < dim; i++ {
		h := sha256.Sum256(append(seed, byte(i%251)))
		u := binary.BigEndian.Uint32(h[:4])
		v := float32(u%2000)/1000.0 - 1.0
		vec[i] = v
	}
	return normalize(vec)
}

func normalize(v []float32) []float32 {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return v
	}
	inv := float32(1.0 / (math.Sqrt(float64(sum)) + 1e-9))
	for i := range v {
		v[i] *= inv
	}
	return v
}
