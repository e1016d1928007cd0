package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mahawthada/legal-assistant/internal/casesession"
	"github.com/mahawthada/legal-assistant/internal/types"
)

// ErrNotFound is returned by Get for cases with no recorded delivery.
var ErrNotFound = casesession.ErrNoRecord

// VerdictRepository records which verdict PDFs were delivered.
type VerdictRepository struct {
	pool *pgxpool.Pool
}

var _ casesession.DownloadArchive = (*VerdictRepository)(nil)

// NewVerdictRepository creates a new VerdictRepository.
func NewVerdictRepository(pool *pgxpool.Pool) *VerdictRepository {
	return &VerdictRepository{pool: pool}
}

// Downloaded reports whether the verdict of caseID was delivered.
func (r *VerdictRepository) Downloaded(ctx context.Context, caseID types.CaseID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM verdict_downloads WHERE case_id = $1)`,
		string(caseID),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check verdict download: %w", err)
	}
	return exists, nil
}

// Record stores a delivery. The first record of a case wins.
func (r *VerdictRepository) Record(ctx context.Context, rec types.DownloadRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO verdict_downloads (case_id, filename, location, size_bytes, downloaded_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (case_id) DO NOTHING`,
		string(rec.CaseID), rec.Filename, rec.Location, rec.SizeBytes, rec.DownloadedAt,
	)
	if err != nil {
		return fmt.Errorf("record verdict download: %w", err)
	}
	return nil
}

// Get returns the delivery of caseID.
func (r *VerdictRepository) Get(ctx context.Context, caseID types.CaseID) (*types.DownloadRecord, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT case_id, filename, location, size_bytes, downloaded_at
		 FROM verdict_downloads WHERE case_id = $1`,
		string(caseID),
	)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get verdict download: %w", err)
	}
	return rec, nil
}

// List returns the most recent deliveries, newest first.
func (r *VerdictRepository) List(ctx context.Context, limit int) ([]types.DownloadRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT case_id, filename, location, size_bytes, downloaded_at
		 FROM verdict_downloads ORDER BY downloaded_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list verdict downloads: %w", err)
	}
	defer rows.Close()

	records := []types.DownloadRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verdict download: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list verdict downloads: %w", err)
	}
	return records, nil
}

func scanRecord(row pgx.Row) (*types.DownloadRecord, error) {
	var (
		rec    types.DownloadRecord
		caseID string
	)
	if err := row.Scan(&caseID, &rec.Filename, &rec.Location, &rec.SizeBytes, &rec.DownloadedAt); err != nil {
		return nil, err
	}
	rec.CaseID = types.CaseID(caseID)
	return &rec, nil
}
