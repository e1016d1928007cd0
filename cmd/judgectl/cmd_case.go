package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mahawthada/legal-assistant/internal/attachment"
	"github.com/mahawthada/legal-assistant/internal/casesession"
	"github.com/mahawthada/legal-assistant/internal/storage/postgres"
	"github.com/mahawthada/legal-assistant/internal/textnorm"
	"github.com/mahawthada/legal-assistant/internal/types"
)

var (
	caseDraft          casesession.Draft
	casePlaintiffFiles []string
	caseDefendantFiles []string
	caseDownloadDir    string
	casePollInterval   time.Duration
)

var caseCmd = &cobra.Command{
	Use:   "case",
	Short: "Bring a case before the AI Judge",
	Long: `Submits a case to the AI Judge and runs the hearing until the verdict.

Each party attaches between 1 and 3 evidence files. Missing text fields are
prompted for. During the hearing type a statement for the current speaker,
or use:
  /state   show the case status
  /poll    check for the verdict now
  /download  retry a failed verdict download
  /quit    leave (the case stays on the server)

The verdict PDF is saved to the download directory once it is rendered.`,
	Args: cobra.NoArgs,
	RunE: runCase,
}

func init() {
	f := caseCmd.Flags()
	f.StringVarP(&caseDraft.Title, "title", "t", "", "case title")
	f.StringVarP(&caseDraft.Scenario, "scenario", "s", "", "case scenario")
	f.StringVar(&caseDraft.PlaintiffName, "plaintiff", "", "plaintiff name")
	f.StringVar(&caseDraft.DefendantName, "defendant", "", "defendant name")
	f.StringArrayVar(&casePlaintiffFiles, "plaintiff-file", nil, "plaintiff evidence file (repeatable)")
	f.StringArrayVar(&caseDefendantFiles, "defendant-file", nil, "defendant evidence file (repeatable)")
	f.StringVarP(&caseDownloadDir, "dir", "d", "", "verdict download directory (default VERDICT_DOWNLOAD_DIR)")
	f.DurationVar(&casePollInterval, "poll-interval", 0, "verdict poll interval (default VERDICT_POLL_INTERVAL)")
}

// openLedger returns the verdict archive when a database is configured and
// an in-memory ledger otherwise.
func openLedger(ctx context.Context) (casesession.DownloadArchive, func(), error) {
	if cfg.Database.DSN == "" {
		return casesession.NewMemoryLedger(), func() {}, nil
	}
	db, err := postgres.New(ctx, cfg.Database.DSN, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open verdict archive: %w", err)
	}
	return postgres.NewVerdictRepository(db.Pool()), db.Close, nil
}

func fillDraft(in *bufio.Reader, d *casesession.Draft) error {
	fields := []struct {
		label string
		value *string
	}{
		{"Case title: ", &d.Title},
		{"Scenario: ", &d.Scenario},
		{"Plaintiff name: ", &d.PlaintiffName},
		{"Defendant name: ", &d.DefendantName},
	}
	for _, f := range fields {
		if strings.TrimSpace(*f.value) != "" {
			continue
		}
		v, err := prompt(in, f.label)
		if err != nil {
			return err
		}
		*f.value = v
	}
	return nil
}

func attachFiles(ctrl *casesession.Controller, party types.Party, paths []string) error {
	files := make([]attachment.File, 0, len(paths))
	for _, p := range paths {
		f, err := attachment.FromPath(p)
		if err != nil {
			return err
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return nil
	}
	return ctrl.AddFiles(party, files...)
}

func printFieldErrors(ve *casesession.ValidationError) {
	keys := make([]string, 0, len(ve.Fields))
	for f := range ve.Fields {
		keys = append(keys, string(f))
	}
	sort.Strings(keys)
	for _, k := range keys {
		out.errorf("%s: %s", k, ve.Fields[casesession.Field(k)])
	}
}

func runCase(cmd *cobra.Command, args []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	ctx := cmd.Context()

	ledger, closeLedger, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer closeLedger()

	dir := caseDownloadDir
	if dir == "" {
		dir = cfg.Case.DownloadDir
	}
	interval := casePollInterval
	if interval <= 0 {
		interval = cfg.Case.PollInterval
	}
	ctrl := casesession.New(client, casesession.NewDirSink(dir), logger,
		casesession.WithPollInterval(interval),
		casesession.WithLedger(ledger),
	)
	defer ctrl.Close()

	in := bufio.NewReader(os.Stdin)
	if err := fillDraft(in, &caseDraft); err != nil {
		return err
	}
	if err := ctrl.SetDraft(caseDraft); err != nil {
		return err
	}
	if err := attachFiles(ctrl, types.Plaintiff, casePlaintiffFiles); err != nil {
		return err
	}
	if err := attachFiles(ctrl, types.Defendant, caseDefendantFiles); err != nil {
		return err
	}

	out.info("Submitting case...")
	if err := ctrl.Start(ctx); err != nil {
		var ve *casesession.ValidationError
		if errors.As(err, &ve) {
			printFieldErrors(ve)
			return errors.New("case form incomplete")
		}
		out.messages(ctrl.Messages())
		return err
	}
	out.info("Case %s opened.", ctrl.CaseID())
	out.rule()

	return hearing(ctx, ctrl, in)
}

// readLines feeds non-blank input lines to the returned channel until the
// reader fails or ctx is done. A read already in progress on stdin cannot be
// interrupted, so after ctx is done the goroutine exits on the next line or
// at EOF instead of blocking on the send.
func readLines(ctx context.Context, in *bufio.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		for {
			line, err := in.ReadString('\n')
			if line = strings.TrimSpace(line); line != "" {
				select {
				case lines <- line:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()
	return lines
}

func speakerPrompt(view casesession.View) string {
	if view.Phase == casesession.PhaseVerdictReady {
		return ""
	}
	role := view.Role
	if role == "" {
		role = types.RolePlaintiff
	}
	return fmt.Sprintf("[round %d] %s> ", view.Round, role)
}

// hearing runs the party rounds until the verdict is downloaded or the
// user leaves.
func hearing(ctx context.Context, ctrl *casesession.Controller, in *bufio.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	view := ctrl.Snapshot()
	out.messages(view.Messages)
	printed := len(view.Messages)
	fmt.Print(speakerPrompt(view))

	announced := false
	lines := readLines(ctx, in)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit := caseInput(ctx, ctrl, line)
			if quit {
				return nil
			}
		case <-ticker.C:
		}

		view := ctrl.Snapshot()
		if len(view.Messages) > printed {
			fmt.Println()
			out.messages(view.Messages[printed:])
			printed = len(view.Messages)
			fmt.Print(speakerPrompt(view))
		}
		if view.Phase != casesession.PhaseVerdictReady {
			continue
		}
		if !announced {
			announced = true
			if !view.Downloaded && !saveVerdict(ctx, ctrl) {
				printVerdict(view)
				out.info("Type /download to retry or /quit to leave.")
				continue
			}
			printVerdict(ctrl.Snapshot())
			return nil
		}
		if view.Downloaded {
			printVerdict(view)
			return nil
		}
	}
}

func caseInput(ctx context.Context, ctrl *casesession.Controller, line string) bool {
	switch line {
	case "/quit", "/exit":
		return true
	case "/state":
		view := ctrl.Snapshot()
		status := "unknown"
		if view.CaseState != nil {
			status = string(view.CaseState.Status)
		}
		out.info("case %s: phase %s, status %s, round %d, speaker %s", view.CaseID, view.Phase, status, view.Round, view.Role)
		return false
	case "/poll":
		if err := ctrl.Poll(ctx); err != nil {
			out.errorf("%v", err)
		}
		return false
	case "/download":
		saveVerdict(ctx, ctrl)
		return false
	}
	if strings.HasPrefix(line, "/") {
		out.errorf("unknown command %s", line)
		return false
	}

	if _, err := ctrl.Send(ctx, line); err != nil {
		if errors.Is(err, casesession.ErrVerdictRendered) {
			out.info("The verdict has been rendered.")
			return false
		}
		out.errorf("%v", err)
	}
	return false
}

// saveVerdict downloads the verdict unless the poll loop already has.
func saveVerdict(ctx context.Context, ctrl *casesession.Controller) bool {
	_, err := ctrl.DownloadVerdict(ctx)
	if err == nil || errors.Is(err, casesession.ErrAlreadyDownloaded) {
		return true
	}
	out.errorf("verdict download failed: %v", err)
	return false
}

func printVerdict(view casesession.View) {
	out.rule()
	out.message(types.Message{Text: textnorm.Normalize(view.Verdict), IsBot: true, Role: types.RoleJudge})
	if view.Download != nil {
		out.info("Verdict saved to %s", view.Download.Location)
	}
}
