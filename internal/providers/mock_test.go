package providers

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMockCategorizeEchoesCaseIDs(t *testing.T) {
	m := NewMockProvider(8)
	resp, info, err := m.Generate(context.Background(), GenerateRequest{
		Operation: "categorize_cases",
		Prompt:    `[{"id":"C-1","title":"a"},{"id":"C-2","title":"b"}]`,
	})
	require.NoError(t, err)
	require.Equal(t, "mock", info.Name)

	var groups []struct {
		CategoryName string   `json:"categoryName"`
		CaseIDs      []string `json:"caseIds"`
	}
	require.NoError(t, json.Unmarshal([]byte(resp.Text), &groups))
	require.Len(t, groups, 1)
	require.Equal(t, []string{"C-1", "C-2"}, groups[0].CaseIDs)
}

func TestMockClaimOutputCarriesAdditionExpression(t *testing.T) {
	m := NewMockProvider(8)
	resp, _, err := m.Generate(context.Background(), GenerateRequest{Operation: "claim_evaluation"})
	require.NoError(t, err)
	require.Contains(t, resp.Text, "10.00 + 5.50 + 2.09")
}

func TestDeterministicVectorStable(t *testing.T) {
	a := deterministicVector("hello", 16)
	b := deterministicVector("hello", 16)
	c := deterministicVector("world", 16)
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.Len(t, a, 16)
}

func TestDeterministicVectorUnitNorm(t *testing.T) {
	for _, input := range []string{"hello", "delayed flight", "x"} {
		v := deterministicVector(input, 64)
		var sum float64
		for _, x := range v {
			sum += float64(x) * float64(x)
		}
		require.InDelta(t, 1.0, sum, 1e-3, "vector for %q is not unit length", input)
	}
}

func TestCachedEmbedderHitsOnRepeat(t *testing.T) {
	inner := &countingEmbedder{dim: 8}
	c := cacheEmbedder(inner)

	first, _, err := c.Embed(context.Background(), EmbedRequest{Inputs: []string{"delayed flight"}, Dimension: 8})
	require.NoError(t, err)
	second, _, err := c.Embed(context.Background(), EmbedRequest{Inputs: []string{"delayed flight"}, Dimension: 8})
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 1, inner.calls)
}

type countingEmbedder struct {
	dim   int
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	c.calls++
	out := make([][]float32, len(req.Inputs))
	for i, in := range req.Inputs {
		out[i] = deterministicVector(strings.ToLower(in), c.dim)
	}
	return out, ProviderInfo{Name: "counting"}, nil
}
