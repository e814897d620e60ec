package kb

import (
	"encoding/json"
	"strings"

	"smartkb/internal/models"
)

// ParseCategories parses the categorization response into Category records.
// Returns nil on any parse failure. A valid response whose groups are all
// empty yields an empty, non-nil slice.
func ParseCategories(raw string) []models.Category {
	raw = StripCodeFence(raw)
	if raw == "" {
		return nil
	}
	var cats []models.Category
	if err := json.Unmarshal([]byte(raw), &cats); err != nil {
		return nil
	}
	out := make([]models.Category, 0, len(cats))
	for _, c := range cats {
		if strings.TrimSpace(c.CategoryName) == "" || len(c.CaseIDs) == 0 {
			continue
		}
		out = append(out, c)
	}
	return out
}

// ParseArticle parses one KB-generation response. Returns nil when the text
// is not a valid article object; the category is then skipped and the loop
// continues.
func ParseArticle(raw string) *models.KBArticle {
	raw = StripCodeFence(raw)
	if raw == "" {
		return nil
	}
	var a models.KBArticle
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return nil
	}
	if strings.TrimSpace(a.Title) == "" || strings.TrimSpace(a.KB) == "" {
		return nil
	}
	if strings.TrimSpace(a.Status) == "" {
		a.Status = "draft"
	}
	return &a
}

// StripCodeFence removes a leading/trailing triple-backtick block, labeled
// or not, and trims whitespace. Text without fences passes through intact.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
