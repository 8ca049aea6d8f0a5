package scheduler

import (
	"context"

	"github.com/aidynbek/canvas-scheduler/internal/domain"
)

// TierQuotas resolves plan ceilings from a static tier table. Unknown tiers
// fall back to the free plan.
type TierQuotas struct {
	table map[domain.SubscriptionTier]domain.Quota
}

func NewTierQuotas(table map[domain.SubscriptionTier]domain.Quota) *TierQuotas {
	return &TierQuotas{table: table}
}

// DefaultTierQuotas matches the plan matrix shipped with the product.
func DefaultTierQuotas() *TierQuotas {
	return NewTierQuotas(map[domain.SubscriptionTier]domain.Quota{
		domain.TierFree:       {MaxActiveSchedules: 3, MaxConcurrent: 1},
		domain.TierStarter:    {MaxActiveSchedules: 10, MaxConcurrent: 3},
		domain.TierPro:        {MaxActiveSchedules: 50, MaxConcurrent: 10},
		domain.TierEnterprise: {MaxActiveSchedules: 500, MaxConcurrent: 50},
	})
}

func (q *TierQuotas) Resolve(tier domain.SubscriptionTier) domain.Quota {
	if quota, ok := q.table[tier]; ok {
		return quota
	}
	return q.table[domain.TierFree]
}

// TierPriority derives dispatch priority from the account's plan: paying
// tiers jump the queue.
type TierPriority struct {
	accounts AccountGetter
}

// AccountGetter is the slice of the account repository the priority service
// needs.
type AccountGetter interface {
	GetByUID(ctx context.Context, uid string) (*domain.Account, error)
}

func NewTierPriority(accounts AccountGetter) *TierPriority {
	return &TierPriority{accounts: accounts}
}

func (p *TierPriority) ComputePriority(ctx context.Context, uid string) (int, error) {
	account, err := p.accounts.GetByUID(ctx, uid)
	if err != nil {
		return domain.PriorityDefault, err
	}

	var priority int
	switch account.Tier {
	case domain.TierEnterprise:
		priority = 1
	case domain.TierPro:
		priority = 3
	case domain.TierStarter:
		priority = 5
	default:
		priority = 8
	}
	return clampPriority(priority), nil
}

func clampPriority(p int) int {
	if p < domain.PriorityHighest {
		return domain.PriorityHighest
	}
	if p > domain.PriorityLowest {
		return domain.PriorityLowest
	}
	return p
}

// FlatCredits charges a fixed cost per finished run. Stand-in for the
// external credit accounting service in deployments that meter per run.
type FlatCredits struct {
	PerRun int
}

func (c FlatCredits) CreditsUsed(_ context.Context, _, _ string) (int, error) {
	return c.PerRun, nil
}
