package domain

import "time"

type SubscriptionTier string

const (
	TierFree       SubscriptionTier = "free"
	TierStarter    SubscriptionTier = "starter"
	TierPro        SubscriptionTier = "pro"
	TierEnterprise SubscriptionTier = "enterprise"
)

type Account struct {
	UID       string
	Email     string
	Name      string
	Tier      SubscriptionTier
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Quota is the plan ceiling resolved from a subscription tier.
type Quota struct {
	MaxActiveSchedules int
	MaxConcurrent      int
}
