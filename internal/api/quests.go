package api

import (
	"net/http"
	"time"

	"questhub/internal/middleware"
	"questhub/internal/model"
	"questhub/internal/service"
	"questhub/pkg/auth"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type questRoutes struct {
	qs *service.QuestService
	a  *auth.SignerAuth
}

func NewQuestRoutes(handler *gin.RouterGroup, qs *service.QuestService, a *auth.SignerAuth, owner *middleware.Ownership) {
	h := &questRoutes{qs: qs, a: a}

	quests := handler.Group("/quests")
	{
		quests.GET("", h.ListQuests)
		quests.GET("/:quest_id", h.GetQuest)

		authed := quests.Group("")
		authed.Use(a.SessionMiddleware())
		{
			authed.POST("", h.CreateQuest)
			authed.GET("/:quest_id/progress", h.GetProgress)
		}

		creator := quests.Group("")
		creator.Use(a.SessionMiddleware(), owner.CreatorOnly())
		{
			creator.POST("/:quest_id/publish", h.PublishQuest)
		}
	}
}

type createStepRequest struct {
	Title    string `json:"title" binding:"required"`
	Action   string `json:"action" binding:"required"`
	Optional bool   `json:"optional"`
}

type createQuestRequest struct {
	Title              string              `json:"title" binding:"required"`
	Description        string              `json:"description"`
	Mode               string              `json:"distribution_mode" binding:"required"`
	WinnerSlots        int                 `json:"winner_slots" binding:"required"`
	PrizeSchedule      []int64             `json:"prize_schedule" binding:"required"`
	DepositedAmount    int64               `json:"deposited_amount" binding:"required"`
	RewardPoints       int                 `json:"reward_points"`
	ExpiryTime         int64               `json:"expiry_time" binding:"required"`
	GracePeriodSeconds int64               `json:"grace_period_seconds"`
	Steps              []createStepRequest `json:"steps" binding:"required"`
}

func (h *questRoutes) CreateQuest(c *gin.Context) {
	caller, ok := auth.Caller(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req createQuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quest := &model.Quest{
		CreatorAddress:  caller,
		Title:           req.Title,
		Description:     req.Description,
		Mode:            model.DistributionMode(req.Mode),
		WinnerSlots:     req.WinnerSlots,
		PrizeSchedule:   req.PrizeSchedule,
		DepositedAmount: req.DepositedAmount,
		RewardPoints:    req.RewardPoints,
		ExpiryTime:      time.Unix(req.ExpiryTime, 0).UTC(),
		GracePeriod:     time.Duration(req.GracePeriodSeconds) * time.Second,
	}
	for _, s := range req.Steps {
		quest.Steps = append(quest.Steps, model.Step{
			Title:    s.Title,
			Action:   s.Action,
			Optional: s.Optional,
		})
	}

	questID, err := h.qs.CreateQuest(c.Request.Context(), quest)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"quest_id": questID.String()})
}

func (h *questRoutes) PublishQuest(c *gin.Context) {
	caller, _ := auth.Caller(c)

	questID, err := uuid.Parse(c.Param("quest_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quest_id"})
		return
	}

	if err := h.qs.Publish(c.Request.Context(), questID, caller); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "active"})
}

type stepResponse struct {
	StepID     string `json:"step_id"`
	OrderIndex int    `json:"order_index"`
	Optional   bool   `json:"optional"`
	Title      string `json:"title"`
	Action     string `json:"action"`
}

type questResponse struct {
	QuestID            string         `json:"quest_id"`
	CreatorAddress     string         `json:"creator_address"`
	Title              string         `json:"title"`
	Description        string         `json:"description"`
	Mode               string         `json:"distribution_mode"`
	WinnerSlots        int            `json:"winner_slots"`
	PrizeSchedule      []int64        `json:"prize_schedule"`
	DepositedAmount    int64          `json:"deposited_amount"`
	RewardPoints       int            `json:"reward_points"`
	ActivationTime     *int64         `json:"activation_time"`
	ExpiryTime         int64          `json:"expiry_time"`
	GracePeriodSeconds int64          `json:"grace_period_seconds"`
	State              string         `json:"state"`
	Steps              []stepResponse `json:"steps"`
}

func toQuestResponse(quest *model.Quest, now time.Time) questResponse {
	var activation *int64
	if quest.ActivationTime != nil {
		unix := quest.ActivationTime.Unix()
		activation = &unix
	}

	steps := make([]stepResponse, len(quest.Steps))
	for i, s := range quest.Steps {
		steps[i] = stepResponse{
			StepID:     s.StepID.String(),
			OrderIndex: s.OrderIndex,
			Optional:   s.Optional,
			Title:      s.Title,
			Action:     s.Action,
		}
	}

	return questResponse{
		QuestID:            quest.QuestID.String(),
		CreatorAddress:     quest.CreatorAddress,
		Title:              quest.Title,
		Description:        quest.Description,
		Mode:               string(quest.Mode),
		WinnerSlots:        quest.WinnerSlots,
		PrizeSchedule:      quest.PrizeSchedule,
		DepositedAmount:    quest.DepositedAmount,
		RewardPoints:       quest.RewardPoints,
		ActivationTime:     activation,
		ExpiryTime:         quest.ExpiryTime.Unix(),
		GracePeriodSeconds: int64(quest.GracePeriod / time.Second),
		State:              string(quest.EffectiveState(now)),
		Steps:              steps,
	}
}

func (h *questRoutes) ListQuests(c *gin.Context) {
	quests, err := h.qs.ListQuests(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	now := time.Now().UTC()
	response := make([]questResponse, len(quests))
	for i, quest := range quests {
		response[i] = toQuestResponse(quest, now)
	}
	c.JSON(http.StatusOK, response)
}

func (h *questRoutes) GetQuest(c *gin.Context) {
	questID, err := uuid.Parse(c.Param("quest_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quest_id"})
		return
	}

	quest, err := h.qs.GetQuest(c.Request.Context(), questID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toQuestResponse(quest, time.Now().UTC()))
}

type stepProgressResponse struct {
	StepID        string `json:"step_id"`
	OrderIndex    int    `json:"order_index"`
	Optional      bool   `json:"optional"`
	Title         string `json:"title"`
	Status        string `json:"status"`
	CooldownUntil *int64 `json:"cooldown_until,omitempty"`
}

type claimResponse struct {
	SlotIndex    int    `json:"slot_index"`
	PrizeAmount  int64  `json:"prize_amount"`
	PointsAmount int    `json:"points_amount"`
	GrantedAt    int64  `json:"granted_at"`
	PointsOnly   bool   `json:"points_only"`
	UserAddress  string `json:"user_address"`
}

type progressResponse struct {
	QuestID        string                 `json:"quest_id"`
	State          string                 `json:"state"`
	Steps          []stepProgressResponse `json:"steps"`
	Complete       bool                   `json:"complete"`
	Claim          *claimResponse         `json:"claim,omitempty"`
	RemainingSlots int                    `json:"remaining_slots"`
}

func toClaimResponse(record *model.ClaimRecord) *claimResponse {
	if record == nil {
		return nil
	}
	return &claimResponse{
		SlotIndex:    record.SlotIndex,
		PrizeAmount:  record.PrizeAmount,
		PointsAmount: record.PointsAmount,
		GrantedAt:    record.GrantedAt.Unix(),
		PointsOnly:   record.PointsOnly(),
		UserAddress:  record.UserAddress,
	}
}

func (h *questRoutes) GetProgress(c *gin.Context) {
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

	progress, err := h.qs.Progress(c.Request.Context(), caller, questID)
	if err != nil {
		respondError(c, err)
		return
	}

	steps := make([]stepProgressResponse, len(progress.Steps))
	for i, s := range progress.Steps {
		var cooldown *int64
		if s.CooldownUntil != nil {
			unix := s.CooldownUntil.Unix()
			cooldown = &unix
		}
		steps[i] = stepProgressResponse{
			StepID:        s.StepID.String(),
			OrderIndex:    s.OrderIndex,
			Optional:      s.Optional,
			Title:         s.Title,
			Status:        string(s.Status),
			CooldownUntil: cooldown,
		}
	}

	c.JSON(http.StatusOK, progressResponse{
		QuestID:        progress.QuestID.String(),
		State:          string(progress.State),
		Steps:          steps,
		Complete:       progress.Complete,
		Claim:          toClaimResponse(progress.Claim),
		RemainingSlots: progress.RemainingSlots,
	})
}
