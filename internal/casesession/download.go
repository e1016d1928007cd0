package casesession

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mahawthada/legal-assistant/internal/backend"
	"github.com/mahawthada/legal-assistant/internal/types"
)

var (
	// ErrNotPDF is returned when the verdict endpoint answers with something
	// other than a PDF.
	ErrNotPDF = errors.New("verdict is not a PDF")

	ErrNoRecord = errors.New("no download recorded for case")
)

// DownloadLedger remembers which verdicts were delivered.
type DownloadLedger interface {
	Downloaded(ctx context.Context, caseID types.CaseID) (bool, error)
	Record(ctx context.Context, rec types.DownloadRecord) error
}

// DownloadArchive is a ledger that can be browsed. Get returns ErrNoRecord
// for cases never delivered; List returns newest first.
type DownloadArchive interface {
	DownloadLedger
	Get(ctx context.Context, caseID types.CaseID) (*types.DownloadRecord, error)
	List(ctx context.Context, limit int) ([]types.DownloadRecord, error)
}

// VerdictSink delivers a verdict document and returns where it went.
type VerdictSink interface {
	Deliver(ctx context.Context, filename string, data []byte) (string, error)
}

// DownloadVerdict fetches the verdict PDF and hands it to the sink, at most
// once per case.
func (c *Controller) DownloadVerdict(ctx context.Context) (*types.DownloadRecord, error) {
	c.downloadMu.Lock()
	defer c.downloadMu.Unlock()

	c.mu.Lock()
	caseID, downloaded, verdict := c.caseID, c.hasDownloaded, c.verdict
	c.mu.Unlock()

	switch {
	case caseID == "":
		return nil, ErrNoCase
	case downloaded:
		return nil, ErrAlreadyDownloaded
	case verdict == "":
		return nil, ErrNoVerdict
	}

	log := c.logger.WithField("case_id", caseID)
	if c.ledger != nil {
		done, err := c.ledger.Downloaded(ctx, caseID)
		if err != nil {
			log.WithError(err).Warn("failed to check download ledger")
		} else if done {
			c.mu.Lock()
			if c.caseID == caseID {
				c.hasDownloaded = true
			}
			c.mu.Unlock()
			return nil, ErrAlreadyDownloaded
		}
	}

	doc, err := c.gateway.Verdict(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("fetch verdict: %w", err)
	}
	if mediaType, _, err := mime.ParseMediaType(doc.ContentType); err != nil || mediaType != backend.ContentTypePDF {
		return nil, fmt.Errorf("%w: content type %q", ErrNotPDF, doc.ContentType)
	}

	filename := verdictFilename(doc.Filename, caseID)
	location, err := c.sink.Deliver(ctx, filename, doc.Data)
	if err != nil {
		return nil, fmt.Errorf("deliver verdict: %w", err)
	}

	rec := types.DownloadRecord{
		CaseID:       caseID,
		Filename:     filename,
		Location:     location,
		SizeBytes:    int64(len(doc.Data)),
		DownloadedAt: c.now().UTC(),
	}
	if c.ledger != nil {
		if err := c.ledger.Record(ctx, rec); err != nil {
			log.WithError(err).Warn("failed to record download")
		}
	}

	c.mu.Lock()
	if c.caseID == caseID {
		c.hasDownloaded = true
		c.download = &rec
		c.lastErr = nil
	}
	c.mu.Unlock()

	log.WithField("location", location).Info("verdict downloaded")
	return &rec, nil
}

// verdictFilename keeps only the base name of the server supplied name.
func verdictFilename(name string, caseID types.CaseID) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		return fmt.Sprintf("verdict_%s.pdf", filepath.Base(string(caseID)))
	}
	return name
}

// DirSink writes verdicts into a directory.
type DirSink struct {
	Dir string
}

// NewDirSink returns a sink writing into dir.
func NewDirSink(dir string) *DirSink {
	return &DirSink{Dir: dir}
}

// Deliver writes data to a temporary file and renames it into place.
func (s *DirSink) Deliver(_ context.Context, filename string, data []byte) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create verdict dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.Dir, ".verdict-*.part")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write verdict: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close verdict: %w", err)
	}

	dst := filepath.Join(s.Dir, filename)
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("move verdict: %w", err)
	}
	return dst, nil
}

// MemoryLedger is a process-local DownloadLedger.
type MemoryLedger struct {
	mu      sync.Mutex
	records map[types.CaseID]types.DownloadRecord
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{records: make(map[types.CaseID]types.DownloadRecord)}
}

func (l *MemoryLedger) Downloaded(_ context.Context, caseID types.CaseID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.records[caseID]
	return ok, nil
}

func (l *MemoryLedger) Record(_ context.Context, rec types.DownloadRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.records[rec.CaseID]; !ok {
		l.records[rec.CaseID] = rec
	}
	return nil
}

func (l *MemoryLedger) Get(_ context.Context, caseID types.CaseID) (*types.DownloadRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[caseID]
	if !ok {
		return nil, ErrNoRecord
	}
	return &rec, nil
}

// List returns up to limit records, newest first. A non-positive limit
// returns all of them.
func (l *MemoryLedger) List(_ context.Context, limit int) ([]types.DownloadRecord, error) {
	l.mu.Lock()
	out := make([]types.DownloadRecord, 0, len(l.records))
	for _, r := range l.records {
		out = append(out, r)
	}
	l.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].DownloadedAt.After(out[j].DownloadedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
