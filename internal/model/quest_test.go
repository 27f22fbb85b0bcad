package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestQuestEffectiveState(t *testing.T) {
	expiry := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		state    QuestState
		now      time.Time
		expected QuestState
	}{
		{"draft never expires", QuestStateDraft, expiry.Add(time.Hour), QuestStateDraft},
		{"active before expiry", QuestStateActive, expiry.Add(-time.Second), QuestStateActive},
		{"active at expiry reads expired", QuestStateActive, expiry, QuestStateExpired},
		{"active past expiry reads expired", QuestStateActive, expiry.Add(time.Hour), QuestStateExpired},
		{"closed stays closed", QuestStateClosed, expiry.Add(time.Hour), QuestStateClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &Quest{State: tt.state, ExpiryTime: expiry}
			assert.Equal(t, tt.expected, q.EffectiveState(tt.now))
		})
	}
}

func TestQuestReclaimableAt(t *testing.T) {
	expiry := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	q := &Quest{ExpiryTime: expiry, GracePeriod: 48 * time.Hour}
	assert.Equal(t, expiry.Add(48*time.Hour), q.ReclaimableAt())
}

func TestQuestRequiredSteps(t *testing.T) {
	q := &Quest{Steps: []Step{
		{StepID: uuid.New(), OrderIndex: 0},
		{StepID: uuid.New(), OrderIndex: 1, Optional: true},
		{StepID: uuid.New(), OrderIndex: 2},
	}}

	required := q.RequiredSteps()
	assert.Len(t, required, 2)
	for _, s := range required {
		assert.False(t, s.Optional)
	}
}
