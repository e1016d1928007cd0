package casesession

import (
	"sort"
	"strings"

	"github.com/mahawthada/legal-assistant/internal/attachment"
	"github.com/mahawthada/legal-assistant/internal/types"
)

// Draft is the text part of the case form.
type Draft struct {
	Title         string `json:"case_title"`
	Scenario      string `json:"scenario"`
	PlaintiffName string `json:"plaintiff_name"`
	DefendantName string `json:"defendant_name"`
}

// Field names a case form input.
type Field string

const (
	FieldTitle          Field = "case_title"
	FieldScenario       Field = "scenario"
	FieldPlaintiffName  Field = "plaintiff_name"
	FieldDefendantName  Field = "defendant_name"
	FieldPlaintiffFiles Field = "plaintiff_files"
	FieldDefendantFiles Field = "defendant_files"
)

var fieldMessages = map[Field]string{
	FieldTitle:          "Please enter a case title.",
	FieldScenario:       "Please describe the case scenario.",
	FieldPlaintiffName:  "Plaintiff name is required.",
	FieldDefendantName:  "Defendant name is required.",
	FieldPlaintiffFiles: "Upload between 1 and 3 plaintiff files (.pdf or .txt).",
	FieldDefendantFiles: "Upload between 1 and 3 defendant files (.pdf or .txt).",
}

// ValidationError lists the incomplete form fields with the message shown
// next to each.
type ValidationError struct {
	Fields map[Field]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		keys = append(keys, string(f))
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, e.Fields[Field(k)])
	}
	return "case form incomplete: " + strings.Join(msgs, " ")
}

func validate(d Draft, files *attachment.Manager) *ValidationError {
	fields := make(map[Field]string)
	check := func(ok bool, f Field) {
		if !ok {
			fields[f] = fieldMessages[f]
		}
	}
	check(strings.TrimSpace(d.Title) != "", FieldTitle)
	check(strings.TrimSpace(d.Scenario) != "", FieldScenario)
	check(strings.TrimSpace(d.PlaintiffName) != "", FieldPlaintiffName)
	check(strings.TrimSpace(d.DefendantName) != "", FieldDefendantName)
	check(attachment.IsValid(files.Files(types.Plaintiff)), FieldPlaintiffFiles)
	check(attachment.IsValid(files.Files(types.Defendant)), FieldDefendantFiles)

	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}
