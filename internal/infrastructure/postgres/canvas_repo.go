package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CanvasRepository reads workflow metadata off the canvases table. Canvas
// lifecycle itself is owned by another service; this subsystem only resolves
// titles for execution records.
type CanvasRepository struct {
	pool *pgxpool.Pool
}

func NewCanvasRepository(pool *pgxpool.Pool) *CanvasRepository {
	return &CanvasRepository{pool: pool}
}

func (r *CanvasRepository) WorkflowTitle(ctx context.Context, canvasID string) (string, error) {
	var title string
	err := r.pool.QueryRow(ctx,
		`SELECT title FROM canvases WHERE id = $1`, canvasID).Scan(&title)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "Untitled workflow", nil
		}
		return "", fmt.Errorf("resolve canvas title: %w", err)
	}
	if title == "" {
		return "Untitled workflow", nil
	}
	return title, nil
}
