package main

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahawthada/legal-assistant/internal/casesession"
	"github.com/mahawthada/legal-assistant/internal/types"
)

func TestParseMode(t *testing.T) {
	m, err := parseMode(" Offline ")
	require.NoError(t, err)
	assert.Equal(t, types.ModeOffline, m)

	_, err = parseMode("fast")
	assert.Error(t, err)
}

func TestArgID(t *testing.T) {
	id, err := argID([]string{"12", "new", "title"})
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)

	for _, args := range [][]string{nil, {"x"}, {"0"}, {"-3"}} {
		_, err := argID(args)
		assert.Error(t, err, "%v", args)
	}
}

func TestConfirm(t *testing.T) {
	assert.True(t, confirm(bufio.NewReader(strings.NewReader("yes\n")), "Delete?"))
	assert.True(t, confirm(bufio.NewReader(strings.NewReader("Y\n")), "Delete?"))
	assert.False(t, confirm(bufio.NewReader(strings.NewReader("\n")), "Delete?"))
	assert.False(t, confirm(bufio.NewReader(strings.NewReader("")), "Delete?"))
}

func TestSpeakerPrompt(t *testing.T) {
	assert.Equal(t, "[round 2] defendant> ", speakerPrompt(casesession.View{Round: 2, Role: types.RoleDefendant}))
	assert.Equal(t, "[round 1] plaintiff> ", speakerPrompt(casesession.View{Round: 1}))
	assert.Empty(t, speakerPrompt(casesession.View{Phase: casesession.PhaseVerdictReady}))
}

func TestPlainPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf, true)
	p.message(types.Message{Text: "**Note**", IsBot: true, Role: types.RoleAssistant})

	assert.Contains(t, buf.String(), "Assistant")
	assert.Contains(t, buf.String(), "**Note**")
}

func TestReadLinesSkipsBlank(t *testing.T) {
	lines := readLines(context.Background(), bufio.NewReader(strings.NewReader("first\n\n  \nsecond")))

	var got []string
	for line := range lines {
		got = append(got, line)
	}
	assert.Equal(t, []string{"first", "second"}, got)
}

func TestReadLinesStopsAfterCancel(t *testing.T) {
	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })
	go pw.Write([]byte("first\nsecond\n"))

	ctx, cancel := context.WithCancel(context.Background())
	lines := readLines(ctx, bufio.NewReader(pr))

	assert.Equal(t, "first", <-lines)
	cancel()
	// nobody receives "second", so the reader must give up on the send
	time.Sleep(50 * time.Millisecond)

	select {
	case _, ok := <-lines:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("reader goroutine still running after cancel")
	}
}
