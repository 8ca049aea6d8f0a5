package repository

import (
	"context"

	"github.com/aidynbek/canvas-scheduler/internal/domain"
)

type AccountRepository interface {
	GetByUID(ctx context.Context, uid string) (*domain.Account, error)
	Create(ctx context.Context, a *domain.Account) (*domain.Account, error)
}
