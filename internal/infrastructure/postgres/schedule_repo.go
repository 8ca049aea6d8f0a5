package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aidynbek/canvas-scheduler/internal/domain"
	"github.com/aidynbek/canvas-scheduler/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const scheduleColumns = `id, canvas_id, uid, cron_expr, timezone, enabled,
	       deleted_at, next_run_at, last_run_at, config, created_at, updated_at`

type ScheduleRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewScheduleRepository(pool *pgxpool.Pool, logger *slog.Logger) *ScheduleRepository {
	return &ScheduleRepository{pool: pool, logger: logger.With("component", "schedule_repo")}
}

func (r *ScheduleRepository) Create(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	query := `
		INSERT INTO schedules (canvas_id, uid, cron_expr, timezone, enabled, next_run_at, config)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + scheduleColumns

	row := r.pool.QueryRow(ctx, query,
		s.CanvasID, s.UID, s.CronExpr, s.Timezone, s.Enabled, s.NextRunAt, s.Config,
	)
	return scanSchedule(row)
}

func (r *ScheduleRepository) GetByID(ctx context.Context, id string) (*domain.Schedule, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE id = $1`, id)
	return scanSchedule(row)
}

func (r *ScheduleRepository) Get(ctx context.Context, id, uid string) (*domain.Schedule, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE id = $1 AND uid = $2 AND deleted_at IS NULL`,
		id, uid)
	return scanSchedule(row)
}

func (r *ScheduleRepository) List(ctx context.Context, input repository.ListSchedulesInput) ([]*domain.Schedule, error) {
	args := []any{input.UID}
	where := []string{"uid = $1", "deleted_at IS NULL"}

	if input.CursorTime != nil {
		args = append(args, *input.CursorTime, input.CursorID)
		where = append(where, fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}
	args = append(args, input.Limit)

	query := fmt.Sprintf(`
		SELECT `+scheduleColumns+`
		FROM schedules
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d`,
		strings.Join(where, " AND "), len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()
	return collectSchedules(rows)
}

func (r *ScheduleRepository) Update(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	query := `
		UPDATE schedules
		SET    cron_expr   = $3,
		       timezone    = $4,
		       enabled     = $5,
		       next_run_at = $6,
		       config      = $7,
		       updated_at  = NOW()
		WHERE id = $1 AND uid = $2 AND deleted_at IS NULL
		RETURNING ` + scheduleColumns

	row := r.pool.QueryRow(ctx, query,
		s.ID, s.UID, s.CronExpr, s.Timezone, s.Enabled, s.NextRunAt, s.Config)
	return scanSchedule(row)
}

func (r *ScheduleRepository) SoftDelete(ctx context.Context, id, uid string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE schedules
		SET    enabled = FALSE, deleted_at = NOW(), next_run_at = NULL, updated_at = NOW()
		WHERE  id = $1 AND uid = $2 AND deleted_at IS NULL`,
		id, uid)
	if err != nil {
		return fmt.Errorf("soft delete schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrScheduleNotFound
	}
	return nil
}

func (r *ScheduleRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.Schedule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+scheduleColumns+`
		FROM schedules
		WHERE enabled AND deleted_at IS NULL AND next_run_at IS NOT NULL AND next_run_at <= $1
		ORDER BY next_run_at ASC
		LIMIT $2`,
		now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due schedules: %w", err)
	}
	defer rows.Close()
	return collectSchedules(rows)
}

// AdvanceNextRun is the single compare-and-swap write that makes a trigger
// exclusive: it only succeeds while next_run_at still holds the value this
// process read. Zero affected rows means another process got there first.
func (r *ScheduleRepository) AdvanceNextRun(ctx context.Context, id string, prev time.Time, next *time.Time, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE schedules
		SET    last_run_at = $4, next_run_at = $3, updated_at = NOW()
		WHERE  id = $1 AND next_run_at = $2 AND enabled AND deleted_at IS NULL`,
		id, prev, next, now)
	if err != nil {
		return false, fmt.Errorf("advance schedule: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ScheduleRepository) Disable(ctx context.Context, id string, config domain.ScheduleConfig) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE schedules
		SET    enabled = FALSE, next_run_at = NULL, config = $2, updated_at = NOW()
		WHERE  id = $1`,
		id, config)
	if err != nil {
		return fmt.Errorf("disable schedule: %w", err)
	}
	return nil
}

func (r *ScheduleRepository) CountActive(ctx context.Context, uid string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM schedules
		WHERE uid = $1 AND enabled AND deleted_at IS NULL`,
		uid).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active schedules: %w", err)
	}
	return count, nil
}

func (r *ScheduleRepository) ListActiveNewest(ctx context.Context, uid, excludeID string, limit int) ([]*domain.Schedule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+scheduleColumns+`
		FROM schedules
		WHERE uid = $1 AND id <> $2 AND enabled AND deleted_at IS NULL
		ORDER BY created_at DESC, id DESC
		LIMIT $3`,
		uid, excludeID, limit)
	if err != nil {
		return nil, fmt.Errorf("list active schedules: %w", err)
	}
	defer rows.Close()
	return collectSchedules(rows)
}

func (r *ScheduleRepository) DisableBatch(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE schedules
		SET    enabled = FALSE, next_run_at = NULL, updated_at = NOW()
		WHERE  id = ANY($1) AND enabled`,
		ids)
	if err != nil {
		return 0, fmt.Errorf("disable schedules: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *ScheduleRepository) ListByCanvas(ctx context.Context, canvasID, uid string) ([]*domain.Schedule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+scheduleColumns+`
		FROM schedules
		WHERE canvas_id = $1 AND uid = $2 AND deleted_at IS NULL`,
		canvasID, uid)
	if err != nil {
		return nil, fmt.Errorf("list schedules by canvas: %w", err)
	}
	defer rows.Close()
	return collectSchedules(rows)
}

func (r *ScheduleRepository) SoftDeleteBatch(ctx context.Context, ids []string, deletedAt time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE schedules
		SET    enabled = FALSE, deleted_at = $2, next_run_at = NULL, updated_at = NOW()
		WHERE  id = ANY($1) AND deleted_at IS NULL`,
		ids, deletedAt)
	if err != nil {
		return 0, fmt.Errorf("soft delete schedules: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func collectSchedules(rows pgx.Rows) ([]*domain.Schedule, error) {
	var schedules []*domain.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedules: %w", err)
	}
	return schedules, nil
}

func scanSchedule(row rowScanner) (*domain.Schedule, error) {
	var s domain.Schedule
	err := row.Scan(
		&s.ID, &s.CanvasID, &s.UID, &s.CronExpr, &s.Timezone, &s.Enabled,
		&s.DeletedAt, &s.NextRunAt, &s.LastRunAt, &s.Config, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("scan schedule: %w", err)
	}
	return &s, nil
}
