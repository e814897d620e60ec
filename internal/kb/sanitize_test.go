package kb

import (
	"testing"

	"smartkb/internal/models"
)

func sampleRawCase() models.RawCase {
	return models.RawCase{
		CaseData: models.RawCaseData{
			CaseID:       "case-42",
			Title:        "  Missed connection \x01 at LHR ",
			Description:  "Inbound delay caused a missed onward flight.",
			FlightNumber: "BA117",
			Departure:    "LHR",
			Arrival:      "JFK",
		},
		ResolutionNote: "Rebooked next flight, meal voucher issued.",
		Compensations:  []models.RawCompensation{{Type: "voucher", Details: "meal 25 USD"}},
		Activities:     []models.RawActivity{{Description: "called customer"}, {Description: "rebooked"}},
	}
}

func TestSanitizeRoundTripFields(t *testing.T) {
	raw := sampleRawCase()
	got := SanitizeCases([]models.RawCase{raw})
	if len(got) != 1 {
		t.Fatalf("expected 1 case, got %d", len(got))
	}
	c := got[0]
	if c.ID != raw.CaseData.CaseID || c.Title != raw.CaseData.Title || c.Description != raw.CaseData.Description {
		t.Fatalf("scalar fields not preserved: %+v", c)
	}
	if c.Flight != "BA117" || c.Route != "LHR to JFK" {
		t.Fatalf("flight/route mapping wrong: %+v", c)
	}
	if len(c.Compensations) != 1 || c.Compensations[0] != "voucher,meal 25 USD" {
		t.Fatalf("compensation mapping wrong: %+v", c.Compensations)
	}
	if len(c.Activities) != 2 || c.Activities[1] != "rebooked" {
		t.Fatalf("activity mapping wrong: %+v", c.Activities)
	}
}

func TestSanitizeEmptySections(t *testing.T) {
	raw := models.RawCase{CaseData: models.RawCaseData{CaseID: "c1", Departure: "AMS", Arrival: "CDG"}}
	got := SanitizeCases([]models.RawCase{raw})
	if got[0].Route != "AMS to CDG" {
		t.Fatalf("unexpected route: %q", got[0].Route)
	}
	if len(got[0].Compensations) != 0 || len(got[0].Activities) != 0 {
		t.Fatalf("expected empty lists, got %+v", got[0])
	}
}

func TestFilterCasesByID(t *testing.T) {
	cases := []models.Case{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	got := FilterCasesByID(cases, []string{"c", "a"})
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Fatalf("expected input-order subset, got %+v", got)
	}
	if n := len(FilterCasesByID(cases, nil)); n != 0 {
		t.Fatalf("expected empty filter result, got %d", n)
	}
}
