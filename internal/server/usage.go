package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	promotiondomain "github.com/vendora/promokit/internal/promotion/domain"
	"github.com/vendora/promokit/internal/tenantcontext"
)

// @Summary      Get Promotion Usage
// @Description  Read the usage counters of a promotion, optionally for one client
// @Tags         promotions
// @Accept       json
// @Produce      json
// @Param        id         path   string  true   "Promotion ID"
// @Param        client_id  query  string  false  "Client ID"
// @Success      200  {object}  map[string]any
// @Router       /promotions/{id}/usage [get]
func (s *Server) GetPromotionUsage(c *gin.Context) {
	tenantID, ok := tenantcontext.TenantIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, promotiondomain.ErrInvalidTenant)
		return
	}
	promotionID, err := promotiondomain.ParseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, promotiondomain.ErrInvalidID)
		return
	}

	var clientID snowflake.ID
	if raw := strings.TrimSpace(c.Query("client_id")); raw != "" {
		clientID, err = snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, newValidationError("client_id", "format", "client id is not valid"))
			return
		}
	}

	snap, err := s.ledger.Snapshot(c.Request.Context(), tenantID, promotionID, clientID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	data := gin.H{
		"promotion_id":       promotionID.String(),
		"total_used":         snap.Global.TotalUsed,
		"total_savings":      snap.Global.TotalSavings.StringFixed(2),
		"budget_used":        snap.Global.BudgetUsed.StringFixed(2),
		"reward_pieces_used": snap.Global.RewardPiecesUsed,
		"last_used_at":       snap.Global.LastUsedAt,
	}
	if clientID != 0 {
		data["client"] = gin.H{
			"client_id":          clientID.String(),
			"total_used":         snap.Client.TotalUsed,
			"total_savings":      snap.Client.TotalSavings.StringFixed(2),
			"budget_used":        snap.Client.BudgetUsed.StringFixed(2),
			"reward_pieces_used": snap.Client.RewardPiecesUsed,
			"last_used_at":       snap.Client.LastUsedAt,
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": data})
}
