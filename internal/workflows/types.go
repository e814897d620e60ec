package workflows

import "smartkb/internal/models"

type KBGenerateInput struct {
	RunID           string           `json:"run_id"`
	RawCases        []models.RawCase `json:"raw_cases"`
	Threshold       int              `json:"threshold"`
	LLMProviders    int              `json:"llm_providers"`
	EmbedProviders  int              `json:"embed_providers"`
	CooldownSeconds int              `json:"cooldown_seconds"`
	MaxTokens       int              `json:"max_tokens"`
	Temperature     float64          `json:"temperature"`
}

type RunProgress struct {
	RunID           string            `json:"run_id"`
	Status          string            `json:"status"`
	TotalCases      int               `json:"total_cases"`
	TotalCategories int               `json:"total_categories"`
	CategoryStatus  map[string]string `json:"category_status"`
	Articles        int               `json:"articles"`
	Skipped         int               `json:"skipped"`
	FailReason      string            `json:"fail_reason,omitempty"`
}
