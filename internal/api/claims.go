package api

import (
	"net/http"

	"questhub/internal/model"
	"questhub/internal/service"
	"questhub/pkg/auth"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type claimRoutes struct {
	cs *service.ClaimService
	es *service.EscrowService
	a  *auth.SignerAuth
}

func NewClaimRoutes(handler *gin.RouterGroup, cs *service.ClaimService, es *service.EscrowService, a *auth.SignerAuth) {
	h := &claimRoutes{cs: cs, es: es, a: a}

	quests := handler.Group("/quests")
	quests.Use(a.SessionMiddleware())
	{
		quests.POST("/:quest_id/claim", h.Claim)
		quests.POST("/:quest_id/reclaim", h.Reclaim)
		quests.GET("/:quest_id/escrow", h.GetEscrow)
	}
}

type claimResultResponse struct {
	Status string         `json:"status"`
	Claim  *claimResponse `json:"claim,omitempty"`
}

func (h *claimRoutes) Claim(c *gin.Context) {
	caller, ok := auth.Caller(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	questID, err := uuid.Parse(c.Param("quest_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quest_id"})
		return
	}

	result, err := h.cs.Claim(c.Request.Context(), caller, questID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, claimResultResponse{
		Status: string(result.Status),
		Claim:  toClaimResponse(result.Record),
	})
}

func (h *claimRoutes) Reclaim(c *gin.Context) {
	caller, ok := auth.Caller(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	questID, err := uuid.Parse(c.Param("quest_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quest_id"})
		return
	}

	amount, err := h.es.Reclaim(c.Request.Context(), questID, caller)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reclaimed_amount": amount})
}

type escrowResponse struct {
	QuestID         string `json:"quest_id"`
	DepositedAmount int64  `json:"deposited_amount"`
	ReservedAmount  int64  `json:"reserved_amount"`
	ReclaimedAmount int64  `json:"reclaimed_amount"`
	ResidualAmount  int64  `json:"residual_amount"`
	Halted          bool   `json:"halted"`
}

func (h *claimRoutes) GetEscrow(c *gin.Context) {
	questID, err := uuid.Parse(c.Param("quest_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quest_id"})
		return
	}

	account, err := h.es.Account(c.Request.Context(), questID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toEscrowResponse(account))
}

func toEscrowResponse(account *model.EscrowAccount) escrowResponse {
	return escrowResponse{
		QuestID:         account.QuestID.String(),
		DepositedAmount: account.DepositedAmount,
		ReservedAmount:  account.ReservedAmount,
		ReclaimedAmount: account.ReclaimedAmount,
		ResidualAmount:  account.Residual(),
		Halted:          account.Halted,
	}
}
