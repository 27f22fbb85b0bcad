package api

import (
	"errors"
	"net/http"

	"questhub/internal/service"

	"github.com/gin-gonic/gin"
)

// errorReason maps a service error to the machine-readable reason the
// presentation layer renders. Every rejection is attributable to a
// named kind; only unrecognized errors fall through to a 500.
func errorReason(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrQuestNotFound):
		return http.StatusNotFound, "QuestNotFound"
	case errors.Is(err, service.ErrStepNotFound):
		return http.StatusNotFound, "StepNotFound"
	case errors.Is(err, service.ErrRequirementsNotMet):
		return http.StatusConflict, "RequirementsNotMet"
	case errors.Is(err, service.ErrAlreadyClaimed):
		return http.StatusConflict, "AlreadyClaimed"
	case errors.Is(err, service.ErrQuestNotClaimable):
		return http.StatusConflict, "QuestNotClaimable"
	case errors.Is(err, service.ErrQuestNotActive):
		return http.StatusConflict, "QuestNotActive"
	case errors.Is(err, service.ErrSlotsExhausted):
		return http.StatusConflict, "SlotsExhausted"
	case errors.Is(err, service.ErrNotSelected):
		return http.StatusConflict, "NotSelected"
	case errors.Is(err, service.ErrSelfClaimForbidden):
		return http.StatusForbidden, "SelfClaimForbidden"
	case errors.Is(err, service.ErrGracePeriodActive):
		return http.StatusConflict, "GracePeriodActive"
	case errors.Is(err, service.ErrNotQuestOwner):
		return http.StatusForbidden, "NotQuestOwner"
	case errors.Is(err, service.ErrQuestNotDraft):
		return http.StatusConflict, "QuestNotDraft"
	case errors.Is(err, service.ErrPrizeScheduleMismatch):
		return http.StatusUnprocessableEntity, "PrizeScheduleMismatch"
	case errors.Is(err, service.ErrQuestStillActive):
		return http.StatusConflict, "QuestStillActive"
	case errors.Is(err, service.ErrNotRaffleQuest):
		return http.StatusConflict, "NotRaffleQuest"
	case errors.Is(err, service.ErrInvariantViolation):
		return http.StatusInternalServerError, "InvariantViolation"
	default:
		return http.StatusInternalServerError, "Internal"
	}
}

func respondError(c *gin.Context, err error) {
	status, reason := errorReason(err)
	body := gin.H{"error": reason}
	if status == http.StatusInternalServerError {
		body["detail"] = err.Error()
	}
	c.JSON(status, body)
}
