package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aidynbek/canvas-scheduler/internal/domain"
	"github.com/aidynbek/canvas-scheduler/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const recordColumns = `id, schedule_id, uid, source_canvas_id, canvas_id, workflow_title,
	       status, priority, scheduled_at, triggered_at, completed_at,
	       credit_used, failure_reason, error_details, workflow_execution_id,
	       snapshot_storage_key, created_at, updated_at`

type RecordRepository struct {
	pool *pgxpool.Pool
}

func NewRecordRepository(pool *pgxpool.Pool) *RecordRepository {
	return &RecordRepository{pool: pool}
}

func (r *RecordRepository) Create(ctx context.Context, rec *domain.ExecutionRecord) (*domain.ExecutionRecord, error) {
	query := `
		INSERT INTO execution_records (
			id, schedule_id, uid, source_canvas_id, canvas_id, workflow_title,
			status, priority, scheduled_at, triggered_at, snapshot_storage_key
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + recordColumns

	row := r.pool.QueryRow(ctx, query,
		rec.ID, rec.ScheduleID, rec.UID, rec.SourceCanvasID, rec.CanvasID, rec.WorkflowTitle,
		rec.Status, rec.Priority, rec.ScheduledAt, rec.TriggeredAt, rec.SnapshotStorageKey,
	)

	created, err := scanRecord(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("create record: slot already exists: %w", err)
		}
		return nil, err
	}
	return created, nil
}

func (r *RecordRepository) GetByID(ctx context.Context, id string) (*domain.ExecutionRecord, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM execution_records WHERE id = $1`, id)
	return scanRecord(row)
}

func (r *RecordRepository) List(ctx context.Context, input repository.ListRecordsInput) ([]*domain.ExecutionRecord, error) {
	args := []any{input.UID}
	where := []string{"uid = $1"}

	if input.ScheduleID != "" {
		args = append(args, input.ScheduleID)
		where = append(where, fmt.Sprintf("schedule_id = $%d", len(args)))
	}
	if input.Status != "" {
		args = append(args, input.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if input.CursorTime != nil {
		args = append(args, *input.CursorTime, input.CursorID)
		where = append(where, fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}
	args = append(args, input.Limit)

	query := fmt.Sprintf(`
		SELECT `+recordColumns+`
		FROM execution_records
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d`,
		strings.Join(where, " AND "), len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// PromoteScheduled claims the schedule's queued slot in one conditional
// update, so two racing triggers cannot both promote the same record.
func (r *RecordRepository) PromoteScheduled(ctx context.Context, scheduleID string, triggeredAt time.Time) (*domain.ExecutionRecord, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE execution_records
		SET    status = 'pending', triggered_at = $2, updated_at = NOW()
		WHERE  schedule_id = $1 AND status = 'scheduled' AND workflow_execution_id IS NULL
		RETURNING `+recordColumns,
		scheduleID, triggeredAt)
	return scanRecord(row)
}

// UpsertScheduledSlot relies on the partial unique index on
// (schedule_id) WHERE status = 'scheduled' AND workflow_execution_id IS NULL —
// the "one queued slot per schedule" invariant lives in the database.
func (r *RecordRepository) UpsertScheduledSlot(ctx context.Context, rec *domain.ExecutionRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO execution_records (
			id, schedule_id, uid, source_canvas_id, workflow_title,
			status, priority, scheduled_at
		) VALUES ($1, $2, $3, $4, $5, 'scheduled', $6, $7)
		ON CONFLICT (schedule_id) WHERE status = 'scheduled' AND workflow_execution_id IS NULL
		DO UPDATE SET scheduled_at = EXCLUDED.scheduled_at, updated_at = NOW()`,
		rec.ID, rec.ScheduleID, rec.UID, rec.SourceCanvasID, rec.WorkflowTitle,
		rec.Priority, rec.ScheduledAt)
	if err != nil {
		return fmt.Errorf("upsert scheduled slot: %w", err)
	}
	return nil
}

func (r *RecordRepository) FailBySchedules(ctx context.Context, scheduleIDs []string, statuses []domain.RecordStatus, reason domain.FailureReason, completedAt time.Time) (int, error) {
	if len(scheduleIDs) == 0 || len(statuses) == 0 {
		return 0, nil
	}
	states := make([]string, len(statuses))
	for i, s := range statuses {
		states[i] = string(s)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE execution_records
		SET    status = 'failed', failure_reason = $3, completed_at = $4, updated_at = NOW()
		WHERE  schedule_id = ANY($1) AND status = ANY($2)`,
		scheduleIDs, states, reason, completedAt)
	if err != nil {
		return 0, fmt.Errorf("fail records by schedule: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *RecordRepository) Finalize(ctx context.Context, id string, f repository.Finalization) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE execution_records
		SET    status                = $2,
		       completed_at          = $3,
		       credit_used           = $4,
		       failure_reason        = NULLIF($5, ''),
		       error_details         = $6,
		       canvas_id             = COALESCE(NULLIF($7, ''), canvas_id),
		       workflow_execution_id = COALESCE(NULLIF($8, ''), workflow_execution_id),
		       updated_at            = NOW()
		WHERE  id = $1`,
		id, f.Status, f.CompletedAt, f.CreditUsed, string(f.FailureReason),
		f.ErrorDetails, f.CanvasID, f.WorkflowExecutionID)
	if err != nil {
		return fmt.Errorf("finalize record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

func (r *RecordRepository) UpdatePriority(ctx context.Context, id string, priority int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE execution_records
		SET    priority = $2, updated_at = NOW()
		WHERE  id = $1`,
		id, priority)
	if err != nil {
		return fmt.Errorf("update record priority: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

func (r *RecordRepository) CountBySchedules(ctx context.Context, scheduleIDs []string, statuses []domain.RecordStatus) (int, error) {
	if len(scheduleIDs) == 0 || len(statuses) == 0 {
		return 0, nil
	}
	states := make([]string, len(statuses))
	for i, s := range statuses {
		states[i] = string(s)
	}
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM execution_records
		WHERE schedule_id = ANY($1) AND status = ANY($2)`,
		scheduleIDs, states).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count records by schedule: %w", err)
	}
	return count, nil
}

func (r *RecordRepository) CountInFlight(ctx context.Context, uid string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM execution_records
		WHERE uid = $1 AND status IN ('processing', 'running')`,
		uid).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count in-flight records: %w", err)
	}
	return count, nil
}

func collectRecords(rows pgx.Rows) ([]*domain.ExecutionRecord, error) {
	var records []*domain.ExecutionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

func scanRecord(row rowScanner) (*domain.ExecutionRecord, error) {
	var (
		rec    domain.ExecutionRecord
		reason *string
	)
	err := row.Scan(
		&rec.ID, &rec.ScheduleID, &rec.UID, &rec.SourceCanvasID, &rec.CanvasID, &rec.WorkflowTitle,
		&rec.Status, &rec.Priority, &rec.ScheduledAt, &rec.TriggeredAt, &rec.CompletedAt,
		&rec.CreditUsed, &reason, &rec.ErrorDetails, &rec.WorkflowExecutionID,
		&rec.SnapshotStorageKey, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("scan record: %w", err)
	}
	if reason != nil {
		rec.FailureReason = domain.FailureReason(*reason)
	}
	return &rec, nil
}
