// Package usage meters monthly application generation against per-tier quotas.
package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Tier names a quota policy class.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// DefaultFreeLimit is the monthly application allowance of the free tier.
const DefaultFreeLimit = 5

// Policy is the quota for one tier. A zero or negative Limit means unlimited.
type Policy struct {
	Limit int
}

// Unlimited reports whether the policy has no cap.
func (p Policy) Unlimited() bool {
	return p.Limit <= 0
}

// Policies maps tiers to their quota.
type Policies map[Tier]Policy

// DefaultPolicies returns the free tier capped at freeLimit and pro unlimited.
func DefaultPolicies(freeLimit int) Policies {
	if freeLimit <= 0 {
		freeLimit = DefaultFreeLimit
	}
	return Policies{
		TierFree: {Limit: freeLimit},
		TierPro:  {Limit: 0},
	}
}

// For returns the policy for tier, falling back to the free policy for unknown tiers.
func (p Policies) For(tier Tier) Policy {
	if policy, ok := p[tier]; ok {
		return policy
	}
	if policy, ok := p[TierFree]; ok {
		return policy
	}
	return Policy{Limit: DefaultFreeLimit}
}

// PeriodFor returns the usage period containing t: the first day of its month, UTC midnight.
func PeriodFor(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Counter reads the stored counter for a (user, period) pair.
type Counter interface {
	GetUsageCount(ctx context.Context, userID uuid.UUID, period time.Time) (int, error)
}

// Reservation is the outcome of a successful quota check.
type Reservation struct {
	UserID       uuid.UUID `json:"-"`
	Period       time.Time `json:"period"`
	CurrentCount int       `json:"current"`
	Limit        int       `json:"limit"`
	Unlimited    bool      `json:"unlimited"`
}

// Next is the counter value to store once the application has been created.
func (r *Reservation) Next() int {
	return r.CurrentCount + 1
}

// Remaining returns the applications left this period, or -1 when unlimited.
func (r *Reservation) Remaining() int {
	if r.Unlimited {
		return -1
	}
	return max(0, r.Limit-r.CurrentCount)
}

// QuotaExceededError is returned when a capped tier has used its allowance.
type QuotaExceededError struct {
	Limit        int
	CurrentCount int
	Period       time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("usage limit reached: %d of %d applications used for %s",
		e.CurrentCount, e.Limit, e.Period.Format("2006-01"))
}

// Meter checks per-user monthly usage against tier policies.
// Checks are best-effort: two concurrent checks may both pass before either
// counter write lands.
type Meter struct {
	counter  Counter
	policies Policies
}

// NewMeter creates a meter backed by counter.
func NewMeter(counter Counter, policies Policies) *Meter {
	if policies == nil {
		policies = DefaultPolicies(DefaultFreeLimit)
	}
	return &Meter{counter: counter, policies: policies}
}

// Current returns the usage for the period containing now without enforcing the limit.
func (m *Meter) Current(ctx context.Context, userID uuid.UUID, tier Tier, now time.Time) (*Reservation, error) {
	period := PeriodFor(now)
	count, err := m.counter.GetUsageCount(ctx, userID, period)
	if err != nil {
		return nil, fmt.Errorf("failed to read usage: %w", err)
	}
	policy := m.policies.For(tier)
	return &Reservation{
		UserID:       userID,
		Period:       period,
		CurrentCount: count,
		Limit:        policy.Limit,
		Unlimited:    policy.Unlimited(),
	}, nil
}

// CheckAndReserve returns a reservation when the user may create another
// application this period, or a *QuotaExceededError when a capped tier is
// at its limit. It never writes; the caller stores Reservation.Next() after
// the application is created.
func (m *Meter) CheckAndReserve(ctx context.Context, userID uuid.UUID, tier Tier, now time.Time) (*Reservation, error) {
	r, err := m.Current(ctx, userID, tier, now)
	if err != nil {
		return nil, err
	}
	if !r.Unlimited && r.CurrentCount >= r.Limit {
		return nil, &QuotaExceededError{Limit: r.Limit, CurrentCount: r.CurrentCount, Period: r.Period}
	}
	return r, nil
}
