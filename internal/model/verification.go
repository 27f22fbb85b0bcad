package model

import (
	"time"

	"github.com/google/uuid"
)

type VerificationStatus string

const (
	VerificationIdle      VerificationStatus = "IDLE"
	VerificationVerifying VerificationStatus = "VERIFYING"
	VerificationVerified  VerificationStatus = "VERIFIED"
	VerificationCooldown  VerificationStatus = "COOLDOWN"
)

// StepVerification is the stored per-(user, step) state machine.
// An absent row reads as IDLE; VERIFIED is terminal.
type StepVerification struct {
	UserAddress   string
	StepID        uuid.UUID
	Status        VerificationStatus
	StartedAt     *time.Time
	CooldownUntil *time.Time
	VerifiedAt    *time.Time
}

// EffectiveStatus resolves the observable state at the given instant.
// Cooldowns decay to IDLE by clock comparison alone, and a VERIFYING
// row older than verifyTimeout is read as a cooldown that began when
// the timeout elapsed, so a hung oracle call can never wedge the pair.
func (v *StepVerification) EffectiveStatus(now time.Time, verifyTimeout, cooldown time.Duration) VerificationStatus {
	if v == nil {
		return VerificationIdle
	}

	switch v.Status {
	case VerificationVerified:
		return VerificationVerified

	case VerificationVerifying:
		if v.StartedAt == nil {
			return VerificationIdle
		}
		deadline := v.StartedAt.Add(verifyTimeout)
		if now.Before(deadline) {
			return VerificationVerifying
		}
		if now.Before(deadline.Add(cooldown)) {
			return VerificationCooldown
		}
		return VerificationIdle

	case VerificationCooldown:
		if v.CooldownUntil != nil && now.Before(*v.CooldownUntil) {
			return VerificationCooldown
		}
		return VerificationIdle
	}

	return VerificationIdle
}

// EffectiveCooldownUntil reports when the current cooldown ends, or nil
// when the effective state is not COOLDOWN.
func (v *StepVerification) EffectiveCooldownUntil(now time.Time, verifyTimeout, cooldown time.Duration) *time.Time {
	if v.EffectiveStatus(now, verifyTimeout, cooldown) != VerificationCooldown {
		return nil
	}
	if v.Status == VerificationVerifying {
		until := v.StartedAt.Add(verifyTimeout).Add(cooldown)
		return &until
	}
	return v.CooldownUntil
}
