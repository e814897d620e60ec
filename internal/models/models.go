package models

import "time"

// RawCase is one record of an uploaded resolved-case export. Only the fields
// the sanitizer maps are declared; everything else in the upload is ignored.
type RawCase struct {
	CaseData       RawCaseData       `json:"case_data"`
	ResolutionNote string            `json:"resolution_note"`
	Compensations  []RawCompensation `json:"compensations"`
	Activities     []RawActivity     `json:"activities"`
}

type RawCaseData struct {
	CaseID       string `json:"caseid"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	FlightNumber string `json:"flight_number"`
	Departure    string `json:"departure"`
	Arrival      string `json:"arrival"`
}

type RawCompensation struct {
	Type    string `json:"type"`
	Details string `json:"details"`
}

type RawActivity struct {
	Description string `json:"description"`
}

// Case is the flat sanitized shape embedded into prompts.
type Case struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Flight        string   `json:"flight"`
	Route         string   `json:"route"`
	Resolution    string   `json:"resolution"`
	Compensations []string `json:"compensations"`
	Activities    []string `json:"activities"`
}

// Category is one advisory grouping returned by the categorization call.
type Category struct {
	CategoryID   string   `json:"categoryId"`
	CategoryName string   `json:"categoryName"`
	CaseIDs      []string `json:"caseIds"`
}

type KBArticle struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id,omitempty"`
	Title     string    `json:"title"`
	Tags      []string  `json:"tags"`
	Status    string    `json:"status"`
	CaseCount int       `json:"caseCount"`
	ClusterID string    `json:"clusterId"`
	KB        string    `json:"KB"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type SearchResult struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Tags    []string `json:"tags"`
	Status  string   `json:"status"`
	KB      string   `json:"KB"`
	Score   float64  `json:"score"`
	Snippet string   `json:"snippet"`
}

type ClaimLine struct {
	Item   string  `json:"item"`
	Price  float64 `json:"price"`
	Reason string  `json:"reason"`
}

type ClaimResult struct {
	Summary        string      `json:"summary"`
	TotalRequested float64     `json:"totalRequested"`
	TotalApproved  float64     `json:"totalApproved"`
	ValidClaims    []ClaimLine `json:"validClaims"`
	InvalidClaims  []ClaimLine `json:"invalidClaims"`
}

type GenerationRun struct {
	RunID      string    `json:"run_id"`
	Status     string    `json:"status"`
	CaseCount  int       `json:"case_count"`
	Threshold  int       `json:"threshold"`
	Categories int       `json:"categories"`
	Articles   int       `json:"articles"`
	Skipped    int       `json:"skipped"`
	FailReason string    `json:"fail_reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
