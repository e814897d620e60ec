// Package kb holds the generation-side pipeline pieces: the case sanitizer
// that flattens uploaded records for prompt embedding, and the tolerant
// parsers for the model's categorization and article responses.
package kb

import (
	"smartkb/internal/models"
)

// SanitizeCases flattens raw uploaded records into the prompt shape. The six
// scalar fields are copied verbatim; missing sections become empty values
// rather than errors. Text scrubbing happens at the storage boundary, not
// here, so the prompt sees the cases exactly as uploaded.
func SanitizeCases(raw []models.RawCase) []models.Case {
	out := make([]models.Case, 0, len(raw))
	for _, r := range raw {
		comps := make([]string, 0, len(r.Compensations))
		for _, c := range r.Compensations {
			comps = append(comps, c.Type+","+c.Details)
		}
		acts := make([]string, 0, len(r.Activities))
		for _, a := range r.Activities {
			acts = append(acts, a.Description)
		}
		out = append(out, models.Case{
			ID:            r.CaseData.CaseID,
			Title:         r.CaseData.Title,
			Description:   r.CaseData.Description,
			Flight:        r.CaseData.FlightNumber,
			Route:         r.CaseData.Departure + " to " + r.CaseData.Arrival,
			Resolution:    r.ResolutionNote,
			Compensations: comps,
			Activities:    acts,
		})
	}
	return out
}

// FilterCasesByID keeps the cases whose IDs appear in ids, preserving input
// order. Used to assemble the per-category payload for article generation.
func FilterCasesByID(cases []models.Case, ids []string) []models.Case {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := make([]models.Case, 0, len(ids))
	for _, c := range cases {
		if _, ok := want[c.ID]; ok {
			out = append(out, c)
		}
	}
	return out
}
