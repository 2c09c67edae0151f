package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mkarwowski/receipt2ledger/constants"
)

// Run is one row in processing_run: a single document's trip through the
// pipeline.
type Run struct {
	ID            uuid.UUID
	SourcePath    string
	Status        constants.RunStatus
	OCRText       string
	OCRConfidence float32
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RunRepository persists run lifecycle state.
type RunRepository struct {
	db *DB
}

func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// Start inserts a QUEUED row for the document and returns its id; the
// pipeline advances it to RUNNING when processing begins.
func (r *RunRepository) Start(ctx context.Context, sourcePath string) (uuid.UUID, error) {
	now := time.Now().UTC()
	id := uuid.New()
	_, err := r.db.exec(ctx,
		`INSERT INTO processing_run (id, source_path, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id.String(), sourcePath, string(constants.RunStatusQueued), now, now)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// FinishOCR stores the extraction outcome and advances the status.
func (r *RunRepository) FinishOCR(ctx context.Context, id uuid.UUID, text string, confidence float32) error {
	_, err := r.db.exec(ctx,
		`UPDATE processing_run SET status = ?, ocr_text = ?, ocr_confidence = ?, updated_at = ?
		 WHERE id = ?`,
		string(constants.RunStatusOCROK), text, confidence, time.Now().UTC(), id.String())
	if err != nil {
		return fmt.Errorf("update run ocr: %w", err)
	}
	return nil
}

// SetStatus advances the run to a later lifecycle state.
func (r *RunRepository) SetStatus(ctx context.Context, id uuid.UUID, status constants.RunStatus) error {
	_, err := r.db.exec(ctx,
		`UPDATE processing_run SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id.String())
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	return nil
}

// Fail marks the run as terminally failed with a diagnosis.
func (r *RunRepository) Fail(ctx context.Context, id uuid.UUID, message string) error {
	_, err := r.db.exec(ctx,
		`UPDATE processing_run SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		string(constants.RunStatusFailed), message, time.Now().UTC(), id.String())
	if err != nil {
		return fmt.Errorf("update run failure: %w", err)
	}
	return nil
}

// GetByID loads one run.
func (r *RunRepository) GetByID(ctx context.Context, id uuid.UUID) (Run, error) {
	row := r.db.queryRow(ctx,
		`SELECT id, source_path, status, COALESCE(ocr_text, ''), COALESCE(ocr_confidence, 0),
		        COALESCE(error_message, ''), created_at, updated_at
		 FROM processing_run WHERE id = ?`, id.String())
	var run Run
	var idStr, status string
	if err := row.Scan(&idStr, &run.SourcePath, &status, &run.OCRText, &run.OCRConfidence,
		&run.ErrorMessage, &run.CreatedAt, &run.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return Run{}, fmt.Errorf("run %s not found", id)
		}
		return Run{}, fmt.Errorf("load run: %w", err)
	}
	run.ID, _ = uuid.Parse(idStr)
	run.Status = constants.RunStatus(status)
	return run, nil
}
