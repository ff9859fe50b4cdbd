package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	counts map[string]int
	err    error
	calls  int
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: make(map[string]int)}
}

func key(userID uuid.UUID, period time.Time) string {
	return userID.String() + "|" + period.Format("2006-01-02")
}

func (f *fakeCounter) GetUsageCount(_ context.Context, userID uuid.UUID, period time.Time) (int, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.counts[key(userID, period)], nil
}

func TestPeriodFor(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "mid month",
			in:   time.Date(2026, 10, 14, 15, 30, 0, 0, time.UTC),
			want: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "first instant of month",
			in:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			want: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "last instant of month",
			in:   time.Date(2026, 2, 28, 23, 59, 59, 999, time.UTC),
			want: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "non-UTC input is normalized",
			in:   time.Date(2026, 11, 1, 1, 0, 0, 0, time.FixedZone("UTC+3", 3*3600)),
			want: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(PeriodFor(tt.in)), "got %s", PeriodFor(tt.in))
		})
	}
}

func TestPolicies_For(t *testing.T) {
	policies := DefaultPolicies(5)

	assert.Equal(t, 5, policies.For(TierFree).Limit)
	assert.False(t, policies.For(TierFree).Unlimited())
	assert.True(t, policies.For(TierPro).Unlimited())
	assert.Equal(t, 5, policies.For(Tier("enterprise-trial")).Limit, "unknown tiers use the free policy")
}

func TestDefaultPolicies_NonPositiveLimit(t *testing.T) {
	assert.Equal(t, DefaultFreeLimit, DefaultPolicies(0).For(TierFree).Limit)
}

func TestMeter_CheckAndReserve(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	period := PeriodFor(now)
	userID := uuid.New()

	t.Run("missing row counts as zero", func(t *testing.T) {
		meter := NewMeter(newFakeCounter(), DefaultPolicies(5))

		r, err := meter.CheckAndReserve(context.Background(), userID, TierFree, now)
		require.NoError(t, err)
		assert.Equal(t, 0, r.CurrentCount)
		assert.Equal(t, 1, r.Next())
		assert.Equal(t, 5, r.Limit)
		assert.Equal(t, 5, r.Remaining())
		assert.True(t, period.Equal(r.Period))
	})

	t.Run("below limit is allowed", func(t *testing.T) {
		counter := newFakeCounter()
		counter.counts[key(userID, period)] = 4
		meter := NewMeter(counter, DefaultPolicies(5))

		r, err := meter.CheckAndReserve(context.Background(), userID, TierFree, now)
		require.NoError(t, err)
		assert.Equal(t, 4, r.CurrentCount)
		assert.Equal(t, 5, r.Next())
	})

	t.Run("at limit is refused", func(t *testing.T) {
		counter := newFakeCounter()
		counter.counts[key(userID, period)] = 5
		meter := NewMeter(counter, DefaultPolicies(5))

		r, err := meter.CheckAndReserve(context.Background(), userID, TierFree, now)
		assert.Nil(t, r)

		var quotaErr *QuotaExceededError
		require.ErrorAs(t, err, &quotaErr)
		assert.Equal(t, 5, quotaErr.Limit)
		assert.Equal(t, 5, quotaErr.CurrentCount)
		assert.Contains(t, err.Error(), "2026-10")
		assert.Equal(t, 5, counter.counts[key(userID, period)], "refusal must not mutate the counter")
	})

	t.Run("previous period does not count", func(t *testing.T) {
		counter := newFakeCounter()
		counter.counts[key(userID, PeriodFor(now.AddDate(0, -1, 0)))] = 5
		meter := NewMeter(counter, DefaultPolicies(5))

		_, err := meter.CheckAndReserve(context.Background(), userID, TierFree, now)
		assert.NoError(t, err)
	})

	t.Run("unlimited tier ignores the count", func(t *testing.T) {
		counter := newFakeCounter()
		counter.counts[key(userID, period)] = 500
		meter := NewMeter(counter, DefaultPolicies(5))

		r, err := meter.CheckAndReserve(context.Background(), userID, TierPro, now)
		require.NoError(t, err)
		assert.True(t, r.Unlimited)
		assert.Equal(t, 501, r.Next())
		assert.Equal(t, -1, r.Remaining())
	})

	t.Run("counter error is wrapped", func(t *testing.T) {
		counter := newFakeCounter()
		counter.err = errors.New("connection reset")
		meter := NewMeter(counter, nil)

		_, err := meter.CheckAndReserve(context.Background(), userID, TierFree, now)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")

		var quotaErr *QuotaExceededError
		assert.False(t, errors.As(err, &quotaErr))
	})
}

func TestMeter_Current_DoesNotRefuse(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	userID := uuid.New()
	counter := newFakeCounter()
	counter.counts[key(userID, PeriodFor(now))] = 7
	meter := NewMeter(counter, DefaultPolicies(5))

	r, err := meter.Current(context.Background(), userID, TierFree, now)
	require.NoError(t, err)
	assert.Equal(t, 7, r.CurrentCount)
	assert.Equal(t, 0, r.Remaining())
}
