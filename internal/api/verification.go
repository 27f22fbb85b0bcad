package api

import (
	"errors"
	"net/http"

	"questhub/internal/service"
	"questhub/pkg/auth"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type verificationRoutes struct {
	vs *service.VerificationService
	a  *auth.SignerAuth
}

func NewVerificationRoutes(handler *gin.RouterGroup, vs *service.VerificationService, a *auth.SignerAuth) {
	h := &verificationRoutes{vs: vs, a: a}

	steps := handler.Group("/quests/:quest_id/steps")
	steps.Use(a.SessionMiddleware())
	{
		steps.POST("/:step_id/verify", h.AttemptVerification)
	}
}

type verificationResponse struct {
	StepID        string `json:"step_id"`
	Status        string `json:"status"`
	CooldownUntil *int64 `json:"cooldown_until,omitempty"`
	VerifiedAt    *int64 `json:"verified_at,omitempty"`
}

func (h *verificationRoutes) AttemptVerification(c *gin.Context) {
	caller, ok := auth.Caller(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	stepID, err := uuid.Parse(c.Param("step_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid step_id"})
		return
	}

	state, err := h.vs.Attempt(c.Request.Context(), caller, stepID)
	if err != nil {
		if errors.Is(err, service.ErrOracleUnavailable) {
			// Retryable immediately; no cooldown was started.
			c.JSON(http.StatusBadGateway, gin.H{"error": "OracleUnavailable"})
			return
		}
		respondError(c, err)
		return
	}

	response := verificationResponse{
		StepID: state.StepID.String(),
		Status: string(state.Status),
	}
	if state.CooldownUntil != nil {
		unix := state.CooldownUntil.Unix()
		response.CooldownUntil = &unix
	}
	if state.VerifiedAt != nil {
		unix := state.VerifiedAt.Unix()
		response.VerifiedAt = &unix
	}

	c.JSON(http.StatusOK, response)
}
