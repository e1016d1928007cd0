package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// CaseStatus is the backend's lifecycle status for a case.
type CaseStatus string

const (
	StatusInitialAnalysis CaseStatus = "initial_analysis"
	StatusCollectingInfo  CaseStatus = "collecting_info"
	StatusInProgress      CaseStatus = "in_progress"
	StatusAwaitingVerdict CaseStatus = "awaiting_verdict"
	StatusVerdictRendered CaseStatus = "verdict_rendered"
)

// Party is one side of a case.
type Party string

const (
	Plaintiff Party = "plaintiff"
	Defendant Party = "defendant"
)

// Valid reports whether p names a known party.
func (p Party) Valid() bool {
	return p == Plaintiff || p == Defendant
}

// CaseID is an opaque case identifier. The judge backend may encode it as
// a JSON string or a JSON number.
type CaseID string

// UnmarshalJSON accepts both string and numeric encodings.
func (id *CaseID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("case id: %w", err)
		}
		*id = CaseID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("case id: %w", err)
	}
	*id = CaseID(n.String())
	return nil
}

// CaseState is the server-owned state returned by /get_case_state.
type CaseState struct {
	Status         CaseStatus `json:"status"`
	CurrentRound   int        `json:"current_round"`
	CurrentSpeaker string     `json:"current_speaker"`
	Language       string     `json:"language"`
	FinalVerdict   string     `json:"final_verdict,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// StartCaseResponse is the response of POST /start_case.
type StartCaseResponse struct {
	CaseID          CaseID     `json:"case_id"`
	InitialAnalysis string     `json:"initial_analysis"`
	CurrentSpeaker  string     `json:"current_speaker"`
	CurrentRound    int        `json:"current_round"`
	Status          CaseStatus `json:"status"`
	Language        string     `json:"language"`
	Error           string     `json:"error,omitempty"`
}

// SubmitMessageResponse is the response of POST /submit_message/{caseId}.
type SubmitMessageResponse struct {
	Response       string     `json:"response"`
	CurrentSpeaker string     `json:"current_speaker"`
	CurrentRound   int        `json:"current_round"`
	Status         CaseStatus `json:"status"`
	Language       string     `json:"language"`
	Error          string     `json:"error,omitempty"`
}

// CaseSummary is one entry of /get_case_history.
type CaseSummary struct {
	CaseID        CaseID `json:"case_id"`
	CaseTitle     string `json:"case_title"`
	PlaintiffName string `json:"plaintiff_name"`
	DefendantName string `json:"defendant_name"`
	VerdictDate   string `json:"verdict_date"`
	PDFPath       string `json:"pdf_path"`
}

var verdictDateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// VerdictTime parses VerdictDate. Dates without a zone are read as UTC.
func (s CaseSummary) VerdictTime() (time.Time, bool) {
	for _, layout := range verdictDateLayouts {
		if t, err := time.Parse(layout, s.VerdictDate); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// VerdictDocument is a downloaded verdict PDF.
type VerdictDocument struct {
	Filename    string
	ContentType string
	Data        []byte
}

// DownloadRecord describes a verdict that has been delivered to the user.
type DownloadRecord struct {
	CaseID       CaseID    `json:"case_id"`
	Filename     string    `json:"filename"`
	Location     string    `json:"location"`
	SizeBytes    int64     `json:"size_bytes"`
	DownloadedAt time.Time `json:"downloaded_at"`
}
