package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mahawthada/legal-assistant/internal/casesession"
	"github.com/mahawthada/legal-assistant/internal/types"
)

var downloadDir string

var casesCmd = &cobra.Command{
	Use:   "cases",
	Short: "List judged cases, newest first",
	Args:  cobra.NoArgs,
	RunE:  runCases,
}

var downloadCmd = &cobra.Command{
	Use:   "download <case-id>",
	Short: "Download the verdict PDF of a judged case",
	Long: `Saves the verdict PDF of a judged case. A verdict already in the archive
is not fetched again unless --force is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

var downloadsCmd = &cobra.Command{
	Use:   "downloads",
	Short: "List saved verdicts, newest first",
	Long:  `Lists the verdict archive. Needs DATABASE_DSN; without it nothing is kept between runs.`,
	Args:  cobra.NoArgs,
	RunE:  runDownloads,
}

var (
	downloadForce  bool
	downloadsLimit int
)

func init() {
	downloadCmd.Flags().StringVarP(&downloadDir, "dir", "d", "", "download directory (default VERDICT_DOWNLOAD_DIR)")
	downloadCmd.Flags().BoolVarP(&downloadForce, "force", "f", false, "download even if the verdict was saved before")
	downloadsCmd.Flags().IntVarP(&downloadsLimit, "limit", "n", 20, "number of entries to show")
}

func runDownloads(cmd *cobra.Command, args []string) error {
	archive, closeArchive, err := openLedger(cmd.Context())
	if err != nil {
		return err
	}
	defer closeArchive()

	records, err := archive.List(cmd.Context(), downloadsLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		out.info("No saved verdicts.")
		return nil
	}
	for _, r := range records {
		fmt.Printf("%-8s %-40s %s\n", r.CaseID, r.Location, dimStyle.Render(r.DownloadedAt.Local().Format(time.DateTime)))
	}
	return nil
}

func runCases(cmd *cobra.Command, args []string) error {
	cases, err := client.CaseHistory(cmd.Context())
	if err != nil {
		return fmt.Errorf("list cases: %w", err)
	}
	if len(cases) == 0 {
		out.info("No judged cases yet.")
		return nil
	}
	for _, c := range cases {
		date := c.VerdictDate
		if t, ok := c.VerdictTime(); ok {
			date = t.Local().Format(time.DateTime)
		}
		fmt.Printf("%-8s %-40s %s\n", c.CaseID, c.CaseTitle, dimStyle.Render(date))
		fmt.Printf("         %s v. %s\n", c.PlaintiffName, c.DefendantName)
	}
	return nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	caseID := types.CaseID(strings.TrimSpace(args[0]))
	if caseID == "" {
		return fmt.Errorf("case id required")
	}

	archive, closeArchive, err := openLedger(ctx)
	if err != nil {
		logger.WithError(err).Warn("verdict archive unavailable")
		archive, closeArchive = casesession.NewMemoryLedger(), func() {}
	}
	defer closeArchive()

	if !downloadForce {
		rec, err := archive.Get(ctx, caseID)
		switch {
		case err == nil:
			if _, statErr := os.Stat(rec.Location); statErr == nil {
				out.info("Verdict already saved to %s", rec.Location)
				return nil
			}
		case !errors.Is(err, casesession.ErrNoRecord):
			logger.WithError(err).Warn("verdict archive lookup failed")
		}
	}

	doc, err := client.DownloadVerdictPDF(ctx, caseID)
	if err != nil {
		return fmt.Errorf("download verdict: %w", err)
	}

	dir := downloadDir
	if dir == "" {
		dir = cfg.Case.DownloadDir
	}
	name := filepath.Base(doc.Filename)
	if name == "." || name == string(filepath.Separator) {
		name = fmt.Sprintf("verdict_%s.pdf", caseID)
	}
	location, err := casesession.NewDirSink(dir).Deliver(ctx, name, doc.Data)
	if err != nil {
		return err
	}

	rec := types.DownloadRecord{
		CaseID:       caseID,
		Filename:     name,
		Location:     location,
		SizeBytes:    int64(len(doc.Data)),
		DownloadedAt: time.Now().UTC(),
	}
	if err := archive.Record(ctx, rec); err != nil {
		logger.WithError(err).Warn("verdict not archived")
	}

	out.info("Verdict saved to %s", location)
	return nil
}
