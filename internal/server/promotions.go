package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	promotiondomain "github.com/vendora/promokit/internal/promotion/domain"
)

// @Summary      Create Promotion
// @Description  Create a new promotion definition in Draft status
// @Tags         promotions
// @Accept       json
// @Produce      json
// @Param        request body promotiondomain.CreateRequest true "Create Promotion Request"
// @Success      200  {object}  promotiondomain.Promotion
// @Router       /promotions [post]
func (s *Server) CreatePromotion(c *gin.Context) {
	var req promotiondomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.promotionSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      List Promotions
// @Description  List the tenant's promotions
// @Tags         promotions
// @Accept       json
// @Produce      json
// @Param        status        query  string  false  "Status"
// @Param        visible_only  query  bool    false  "Visible only"
// @Success      200  {object}  []promotiondomain.Promotion
// @Router       /promotions [get]
func (s *Server) ListPromotions(c *gin.Context) {
	var req promotiondomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.promotionSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Get Promotion
// @Description  Get promotion by ID with its products and client ranges
// @Tags         promotions
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Promotion ID"
// @Success      200  {object}  promotiondomain.Promotion
// @Router       /promotions/{id} [get]
func (s *Server) GetPromotionByID(c *gin.Context) {
	resp, err := s.promotionSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type setStatusRequest struct {
	Status string `json:"status"`
}

// @Summary      Set Promotion Status
// @Description  Toggle a promotion between Draft, Active and Paused
// @Tags         promotions
// @Accept       json
// @Produce      json
// @Param        id      path  string            true  "Promotion ID"
// @Param        request body  setStatusRequest  true  "Set Status Request"
// @Success      200  {object}  promotiondomain.Promotion
// @Router       /promotions/{id}/status [patch]
func (s *Server) SetPromotionStatus(c *gin.Context) {
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	status := promotiondomain.PromotionStatus(strings.TrimSpace(strings.ToLower(req.Status)))
	resp, err := s.promotionSvc.SetStatus(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Validate Promotion Definition
// @Description  Check a promotion definition without persisting it
// @Tags         promotions
// @Accept       json
// @Produce      json
// @Param        request body promotiondomain.CreateRequest true "Promotion Definition"
// @Success      200  {object}  map[string]any
// @Router       /promotions/validate [post]
func (s *Server) ValidatePromotion(c *gin.Context) {
	var req promotiondomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	promo := &promotiondomain.Promotion{
		Name:                strings.TrimSpace(req.Name),
		Type:                req.Type,
		IsStackable:         req.IsStackable,
		Limits:              req.Limits,
		ApplicationProducts: req.ApplicationProducts,
		RewardProducts:      req.RewardProducts,
		ClientRanges:        req.ClientRanges,
	}
	violations := promotiondomain.ValidateDefinition(promo)

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"valid":      len(violations) == 0,
		"violations": violations,
	}})
}
