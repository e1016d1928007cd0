// Package textnorm cleans assistant replies before they are handed to the
// markdown renderer: it removes the repeated lines and sentences language
// models tend to emit and collapses runaway emphasis and blank lines.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"
)

// Script is the writing system used to pick sentence boundaries.
type Script int

const (
	ScriptLatin Script = iota
	ScriptMyanmar
	ScriptHan
	ScriptKana
)

func (s Script) String() string {
	switch s {
	case ScriptMyanmar:
		return "myanmar"
	case ScriptHan:
		return "han"
	case ScriptKana:
		return "kana"
	default:
		return "latin"
	}
}

const (
	myanmarSection  = '\u104B'
	ideographicStop = '\u3002'
)

var (
	myanmar = &unicode.RangeTable{
		R16: []unicode.Range16{{Lo: 0x1000, Hi: 0x109F, Stride: 1}},
	}

	emphasisRun = regexp.MustCompile(`\*{3,}`)
	newlineRun  = regexp.MustCompile(`\n{3,}`)
)

// DetectScript returns the script whose characters appear in s, checked in
// the order Myanmar, Han, Kana. Text with none of them is Latin.
func DetectScript(s string) Script {
	var hasHan, hasKana bool
	for _, r := range s {
		switch {
		case unicode.Is(myanmar, r):
			return ScriptMyanmar
		case unicode.Is(unicode.Han, r):
			hasHan = true
		case unicode.In(r, unicode.Hiragana, unicode.Katakana):
			hasKana = true
		}
	}
	switch {
	case hasHan:
		return ScriptHan
	case hasKana:
		return ScriptKana
	default:
		return ScriptLatin
	}
}

func (s Script) isTerminator(r rune) bool {
	switch s {
	case ScriptMyanmar:
		return r == myanmarSection
	case ScriptHan, ScriptKana:
		return r == ideographicStop
	default:
		return r == '.' || r == '!' || r == '?'
	}
}

// Normalize returns raw with duplicate lines and sentences removed, emphasis
// runs of three or more asterisks reduced to two and blank-line runs reduced
// to one. It is idempotent. Empty or whitespace-only input yields "".
func Normalize(raw string) (out string) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			out = trimmed
		}
	}()

	text := strings.ReplaceAll(trimmed, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = emphasisRun.ReplaceAllString(text, "**")
	text = newlineRun.ReplaceAllString(text, "\n\n")

	script := DetectScript(text)
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))

	var prevKey string
	prevBlank := true
	for _, line := range lines {
		line = dedupSentences(line, script)
		if line == "" {
			if !prevBlank {
				kept = append(kept, "")
			}
			prevBlank = true
			continue
		}
		key := lineKey(line)
		if !prevBlank && key == prevKey {
			continue
		}
		kept = append(kept, line)
		prevKey = key
		prevBlank = false
	}

	return strings.TrimRightFunc(strings.Join(kept, "\n"), unicode.IsSpace)
}

// dedupSentences drops consecutive repeated sentences inside one line and
// joins the rest with single spaces. Leading indentation is kept so nested
// list items survive.
func dedupSentences(line string, script Script) string {
	content := strings.TrimSpace(line)
	if content == "" {
		return ""
	}
	indent := line[:len(line)-len(strings.TrimLeftFunc(line, unicode.IsSpace))]

	sentences := splitSentences(content, script)
	out := sentences[:0]
	for _, s := range sentences {
		if len(out) > 0 && out[len(out)-1] == s {
			continue
		}
		out = append(out, s)
	}
	return indent + strings.Join(out, " ")
}

// splitSentences cuts text after each run of terminators. Latin terminators
// only end a sentence when followed by whitespace or the end of the text,
// which keeps "3.5" and "e.g" intact.
func splitSentences(text string, script Script) []string {
	runes := []rune(text)
	var sentences []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if !script.isTerminator(runes[i]) {
			continue
		}
		end := i
		for end+1 < len(runes) && script.isTerminator(runes[end+1]) {
			end++
		}
		i = end
		if script == ScriptLatin && end+1 < len(runes) && !unicode.IsSpace(runes[end+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : end+1])); s != "" {
			sentences = append(sentences, s)
		}
		start = end + 1
	}
	if start < len(runes) {
		if s := strings.TrimSpace(string(runes[start:])); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// lineKey is the comparison key for duplicate-line removal. Bullet items
// compare on their text so "- a" and "• a" count as the same line.
func lineKey(line string) string {
	t := strings.TrimSpace(line)
	for _, marker := range []string{"-", "*", "•"} {
		rest, ok := strings.CutPrefix(t, marker)
		if ok && rest != "" && unicode.IsSpace([]rune(rest)[0]) {
			return "\x00" + strings.TrimSpace(rest)
		}
	}
	return t
}
