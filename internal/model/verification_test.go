package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStepVerificationEffectiveStatus(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	verifyTimeout := 15 * time.Second
	cooldown := time.Hour

	started := base
	cooldownUntil := base.Add(cooldown)
	verifiedAt := base

	tests := []struct {
		name     string
		stored   *StepVerification
		now      time.Time
		expected VerificationStatus
	}{
		{
			name:     "absent row reads as idle",
			stored:   nil,
			now:      base,
			expected: VerificationIdle,
		},
		{
			name:     "verified is terminal",
			stored:   &StepVerification{Status: VerificationVerified, VerifiedAt: &verifiedAt},
			now:      base.Add(100 * time.Hour),
			expected: VerificationVerified,
		},
		{
			name:     "fresh verifying stays verifying",
			stored:   &StepVerification{Status: VerificationVerifying, StartedAt: &started},
			now:      base.Add(verifyTimeout - time.Second),
			expected: VerificationVerifying,
		},
		{
			name:     "stale verifying decays to cooldown",
			stored:   &StepVerification{Status: VerificationVerifying, StartedAt: &started},
			now:      base.Add(verifyTimeout),
			expected: VerificationCooldown,
		},
		{
			name:     "stale verifying past cooldown decays to idle",
			stored:   &StepVerification{Status: VerificationVerifying, StartedAt: &started},
			now:      base.Add(verifyTimeout).Add(cooldown),
			expected: VerificationIdle,
		},
		{
			name:     "cooldown holds before its deadline",
			stored:   &StepVerification{Status: VerificationCooldown, CooldownUntil: &cooldownUntil},
			now:      cooldownUntil.Add(-time.Second),
			expected: VerificationCooldown,
		},
		{
			name:     "cooldown releases exactly at its deadline",
			stored:   &StepVerification{Status: VerificationCooldown, CooldownUntil: &cooldownUntil},
			now:      cooldownUntil,
			expected: VerificationIdle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.stored.EffectiveStatus(tt.now, verifyTimeout, cooldown))
		})
	}
}

func TestStepVerificationEffectiveCooldownUntil(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	verifyTimeout := 15 * time.Second
	cooldown := time.Hour

	started := base
	stale := &StepVerification{Status: VerificationVerifying, StartedAt: &started}

	until := stale.EffectiveCooldownUntil(base.Add(verifyTimeout+time.Minute), verifyTimeout, cooldown)
	if assert.NotNil(t, until) {
		assert.Equal(t, base.Add(verifyTimeout).Add(cooldown), *until)
	}

	assert.Nil(t, stale.EffectiveCooldownUntil(base, verifyTimeout, cooldown))
}
