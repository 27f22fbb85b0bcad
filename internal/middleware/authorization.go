package middleware

import (
	"net/http"

	"questhub/internal/service"
	"questhub/pkg/auth"
	"questhub/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Ownership struct {
	quests *service.QuestService
}

func NewOwnership(quests *service.QuestService) *Ownership {
	return &Ownership{
		quests: quests,
	}
}

// CreatorOnly gates routes that mutate a quest to its creator. Runs
// after the session middleware; services re-check ownership on their
// own, this just fails fast with a clean 403.
func (o *Ownership) CreatorOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.Logger()

		caller, ok := auth.Caller(c)
		if !ok {
			log.Error("caller address not found in context")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		questID, err := uuid.Parse(c.Param("quest_id"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid quest_id"})
			return
		}

		quest, err := o.quests.GetQuest(c.Request.Context(), questID)
		if err != nil {
			log.Info("failed to load quest for ownership check",
				zap.String("quest_id", questID.String()), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "quest not found"})
			return
		}

		if quest.CreatorAddress != caller {
			log.Info("non-creator attempted creator-only operation",
				zap.String("quest_id", questID.String()),
				zap.String("caller", caller))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "creator access required"})
			return
		}

		c.Next()
	}
}
