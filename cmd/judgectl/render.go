package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/mahawthada/legal-assistant/internal/types"
)

var (
	userStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	botStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	judgeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

var separator = strings.Repeat("─", 60)

// printer writes transcript messages to the terminal. Bot text is already
// normalized markdown and is rendered with glamour unless plain is set.
type printer struct {
	w        io.Writer
	renderer *glamour.TermRenderer
}

func newPrinter(w io.Writer, plain bool) *printer {
	p := &printer{w: w}
	if plain {
		return p
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err == nil {
		p.renderer = r
	}
	return p
}

func (p *printer) label(m types.Message) string {
	switch {
	case m.Role == types.RoleJudge:
		return judgeStyle.Render(string(types.RoleJudge))
	case m.IsBot:
		return botStyle.Render("Assistant")
	case m.Role == types.RolePlaintiff:
		return userStyle.Render("Plaintiff")
	case m.Role == types.RoleDefendant:
		return userStyle.Render("Defendant")
	default:
		return userStyle.Render("You")
	}
}

func (p *printer) message(m types.Message) {
	fmt.Fprintln(p.w, p.label(m))
	if m.IsBot && p.renderer != nil {
		if rendered, err := p.renderer.Render(m.Text); err == nil {
			fmt.Fprint(p.w, rendered)
			return
		}
	}
	fmt.Fprintln(p.w, m.Text)
	fmt.Fprintln(p.w)
}

func (p *printer) messages(list []types.Message) {
	for _, m := range list {
		p.message(m)
	}
}

func (p *printer) rule() {
	fmt.Fprintln(p.w, dimStyle.Render(separator))
}

func (p *printer) info(format string, args ...any) {
	fmt.Fprintln(p.w, dimStyle.Render(fmt.Sprintf(format, args...)))
}

func (p *printer) errorf(format string, args ...any) {
	fmt.Fprintln(p.w, p.errorText(fmt.Sprintf(format, args...)))
}

func (p *printer) errorText(s string) string {
	if p == nil {
		return "Error: " + s
	}
	return errorStyle.Render("Error: " + s)
}

// prompt prints label and reads one trimmed line from r.
func prompt(r *bufio.Reader, label string) (string, error) {
	fmt.Fprint(os.Stdout, label)
	line, err := r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readPassword reads a password without echo when stdin is a terminal.
func readPassword(r *bufio.Reader, label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(r, label)
	}
	fmt.Fprint(os.Stdout, label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stdout)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// confirm asks a yes/no question; anything but y or yes declines.
func confirm(r *bufio.Reader, question string) bool {
	answer, err := prompt(r, question+" [y/N] ")
	if err != nil {
		return false
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes"
}
