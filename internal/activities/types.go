package activities

import "smartkb/internal/models"

type SanitizeCasesInput struct {
	RawCases []models.RawCase `json:"raw_cases"`
}

type SanitizeCasesOutput struct {
	Cases []models.Case `json:"cases"`
}

type LLMGenerateInput struct {
	Operation     string   `json:"operation"`
	RunID         string   `json:"run_id"`
	System        string   `json:"system"`
	Prompt        string   `json:"prompt"`
	Context       []string `json:"context"`
	MaxTokens     int      `json:"max_tokens"`
	Temperature   float64  `json:"temperature"`
	ProviderIndex int      `json:"provider_index"`
	ProviderRef   string   `json:"provider_ref"`
}

type LLMGenerateOutput struct {
	Text         string `json:"text"`
	ProviderName string `json:"provider_name"`
	Model        string `json:"model"`
}

type EmbedTextsInput struct {
	Operation     string   `json:"operation"`
	RunID         string   `json:"run_id"`
	Inputs        []string `json:"inputs"`
	ProviderIndex int      `json:"provider_index"`
}

type EmbedTextsOutput struct {
	Vectors      [][]float32 `json:"vectors"`
	ProviderName string      `json:"provider_name"`
	Model        string      `json:"model"`
}

type UpsertArticleInput struct {
	Article models.KBArticle `json:"article"`
	Vector  []float32        `json:"vector,omitempty"`
}

type WriteArticleArtifactInput struct {
	RunID   string           `json:"run_id"`
	Article models.KBArticle `json:"article"`
}

type WriteArticleArtifactOutput struct {
	Path string `json:"path"`
}

type CreateRunInput struct {
	RunID     string `json:"run_id"`
	CaseCount int    `json:"case_count"`
	Threshold int    `json:"threshold"`
}

type UpdateRunInput struct {
	RunID      string `json:"run_id"`
	Status     string `json:"status"`
	Categories int    `json:"categories"`
	Articles   int    `json:"articles"`
	Skipped    int    `json:"skipped"`
	FailReason string `json:"fail_reason"`
}

type LogLLMCallInput struct {
	CallID       string `json:"call_id"`
	Operation    string `json:"operation"`
	RunID        string `json:"run_id"`
	ProviderName string `json:"provider_name"`
	Model        string `json:"model"`
	RequestID    string `json:"request_id"`
	Status       string `json:"status"`
	ErrorType    string `json:"error_type"`
}
