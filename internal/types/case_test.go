package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaseIDAcceptsStringAndNumber(t *testing.T) {
	var resp struct {
		A CaseID `json:"a"`
		B CaseID `json:"b"`
		C CaseID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"abc-1","b":42,"c":null}`), &resp))

	assert.Equal(t, CaseID("abc-1"), resp.A)
	assert.Equal(t, CaseID("42"), resp.B)
	assert.Equal(t, CaseID(""), resp.C)

	assert.Error(t, json.Unmarshal([]byte(`{"a":true}`), &resp))
}

func TestVerdictTime(t *testing.T) {
	got, ok := CaseSummary{VerdictDate: "2024-05-01T10:30:00"}.VerdictTime()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC), got)

	_, ok = CaseSummary{VerdictDate: "yesterday"}.VerdictTime()
	assert.False(t, ok)
}

func TestPartyValid(t *testing.T) {
	assert.True(t, Plaintiff.Valid())
	assert.True(t, Defendant.Valid())
	assert.False(t, Party("judge").Valid())
}

func TestChatReplyText(t *testing.T) {
	assert.Equal(t, "a", (&ChatReply{Answer: "a", Message: "m"}).Text())
	assert.Equal(t, "m", (&ChatReply{Message: "m"}).Text())
}
