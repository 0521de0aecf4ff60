package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "assura/pkg/domain"
	dErrors "assura/pkg/domain-errors"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TestTransitionGrid checks every (from, to) pair against the allowed table.
func TestTransitionGrid(t *testing.T) {
	allowed := map[Status]map[Status]bool{
		StatusDraft:        {StatusSubmitted: true, StatusCancelled: true},
		StatusSubmitted:    {StatusUnderwriting: true, StatusCancelled: true},
		StatusUnderwriting: {StatusActive: true, StatusCancelled: true},
		StatusActive:       {StatusAmended: true, StatusLapsed: true, StatusCancelled: true},
		StatusAmended:      {StatusActive: true, StatusLapsed: true, StatusCancelled: true},
		StatusLapsed:       {StatusReinstated: true, StatusCancelled: true},
		StatusReinstated:   {StatusActive: true, StatusLapsed: true, StatusCancelled: true},
		StatusCancelled:    {},
	}
	for _, from := range Statuses() {
		for _, to := range Statuses() {
			want := allowed[from][to]
			assert.Equal(t, want, from.CanTransitionTo(to), "from=%s to=%s", from, to)
		}
	}
}

func TestCancelledIsTerminal(t *testing.T) {
	assert.True(t, StatusCancelled.IsTerminal())
	assert.Empty(t, StatusCancelled.AllowedTargets())
	for _, s := range Statuses() {
		if s != StatusCancelled {
			assert.False(t, s.IsTerminal(), "status %s", s)
		}
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("active")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, s)

	_, err = ParseStatus("unknown")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestInvalidTransitionError(t *testing.T) {
	p := validPolicy()
	p.Status = StatusCancelled

	err := p.CanTransition(StatusActive)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, StatusCancelled, invalid.Current)
	assert.Equal(t, StatusActive, invalid.Requested)
}

func validPolicy() *Policy {
	return &Policy{
		ID:                   id.PolicyID(uuid.New()),
		TenantID:             id.TenantID(uuid.New()),
		ClientID:             id.ClientID(uuid.New()),
		AgentID:              id.UserID(uuid.New()),
		PolicyNumber:         "POL-001",
		ProductCategory:      ProductLife,
		ProductName:          "Life Cover Plus",
		InsurerName:          "Acme Life",
		SumAssured:           50000000,
		MonthlyPremium:       100000,
		PremiumFrequency:     FrequencyMonthly,
		CollectionMethod:     CollectionDebitOrder,
		InceptionDate:        date(2024, 1, 1),
		InitialCommissionPct: 0.10,
		Status:               StatusDraft,
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid policy passes", func(t *testing.T) {
		assert.NoError(t, validPolicy().Validate())
	})

	tests := []struct {
		name   string
		mutate func(*Policy)
	}{
		{"missing policy number", func(p *Policy) { p.PolicyNumber = "" }},
		{"zero sum assured", func(p *Policy) { p.SumAssured = 0 }},
		{"negative premium", func(p *Policy) { p.MonthlyPremium = -1 }},
		{"commission pct above 1", func(p *Policy) { p.InitialCommissionPct = 1.5 }},
		{"negative renewal pct", func(p *Policy) { p.RenewalCommissionPct = -0.1 }},
		{"unknown product category", func(p *Policy) { p.ProductCategory = "spaceship" }},
		{"unknown frequency", func(p *Policy) { p.PremiumFrequency = "fortnightly" }},
		{"unknown collection method", func(p *Policy) { p.CollectionMethod = "barter" }},
		{"zero inception date", func(p *Policy) { p.InceptionDate = time.Time{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPolicy()
			tt.mutate(p)
			err := p.Validate()
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

func TestApplyTransitionStamps(t *testing.T) {
	now := date(2024, 3, 1)

	t.Run("lapse stamps lapse date", func(t *testing.T) {
		p := validPolicy()
		p.Status = StatusActive
		p.ApplyTransition(StatusLapsed, "", now)
		require.NotNil(t, p.LapseDate)
		assert.Equal(t, now, *p.LapseDate)
	})

	t.Run("cancel stamps date and reason", func(t *testing.T) {
		p := validPolicy()
		p.Status = StatusActive
		p.ApplyTransition(StatusCancelled, "client request", now)
		require.NotNil(t, p.CancellationDate)
		assert.Equal(t, now, *p.CancellationDate)
		assert.Equal(t, "client request", p.CancellationReason)
	})

	t.Run("first activation stamps watch window", func(t *testing.T) {
		p := validPolicy()
		p.Status = StatusUnderwriting
		p.ApplyTransition(StatusActive, "", now)
		require.NotNil(t, p.ActivatedAt)
		assert.Equal(t, now, *p.ActivatedAt)
		require.NotNil(t, p.ClawbackWatchUntil)
		assert.Equal(t, date(2025, 12, 31), *p.ClawbackWatchUntil) // inception + 730d
	})

	t.Run("re-activation keeps original activation", func(t *testing.T) {
		p := validPolicy()
		p.Status = StatusUnderwriting
		first := date(2024, 2, 1)
		p.ApplyTransition(StatusActive, "", first)
		p.ApplyTransition(StatusAmended, "", now)
		p.ApplyTransition(StatusActive, "", date(2024, 4, 1))
		assert.Equal(t, first, *p.ActivatedAt)
	})
}

func TestRenewalPeriodIndex(t *testing.T) {
	p := validPolicy()
	p.PremiumFrequency = FrequencyAnnual

	assert.Equal(t, 0, p.RenewalPeriodIndex(date(2024, 6, 1)))
	assert.Equal(t, 1, p.RenewalPeriodIndex(date(2025, 1, 1)))
	assert.Equal(t, 2, p.RenewalPeriodIndex(date(2026, 3, 1)))

	p.PremiumFrequency = FrequencyQuarterly
	assert.Equal(t, 1, p.RenewalPeriodIndex(date(2024, 4, 1)))
	assert.Equal(t, 4, p.RenewalPeriodIndex(date(2025, 1, 1)))

	p.PremiumFrequency = FrequencyOnceOff
	assert.Equal(t, 0, p.RenewalPeriodIndex(date(2030, 1, 1)))
}

func TestInWatchWindow(t *testing.T) {
	p := validPolicy()
	assert.True(t, p.InWatchWindow(date(2024, 8, 1)))
	assert.True(t, p.InWatchWindow(date(2025, 12, 31)))  // day 730 inclusive
	assert.False(t, p.InWatchWindow(date(2026, 1, 1)))   // day 731
}
