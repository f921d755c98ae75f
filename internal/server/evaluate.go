package server

import (
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/vendora/promokit/internal/evaluation"
	ledgerdomain "github.com/vendora/promokit/internal/ledger/domain"
	promotiondomain "github.com/vendora/promokit/internal/promotion/domain"
	"github.com/vendora/promokit/internal/tenantcontext"
)

type orderLineRequest struct {
	ProductID string          `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type evaluateOrderRequest struct {
	OrderID  string             `json:"order_id"`
	ClientID string             `json:"client_id"`
	PlacedAt *time.Time         `json:"placed_at,omitempty"`
	Lines    []orderLineRequest `json:"lines"`
}

func (s *Server) orderFromRequest(c *gin.Context, req evaluateOrderRequest) (evaluation.Order, bool) {
	tenantID, ok := tenantcontext.TenantIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, promotiondomain.ErrInvalidTenant)
		return evaluation.Order{}, false
	}
	clientID, err := snowflake.ParseString(req.ClientID)
	if err != nil || clientID == 0 {
		AbortWithError(c, newValidationError("client_id", "required", "client id is required"))
		return evaluation.Order{}, false
	}

	order := evaluation.Order{
		TenantID: tenantID,
		ClientID: clientID,
	}
	if req.OrderID != "" {
		orderID, err := snowflake.ParseString(req.OrderID)
		if err != nil {
			AbortWithError(c, newValidationError("order_id", "format", "order id is not valid"))
			return evaluation.Order{}, false
		}
		order.ID = orderID
	}
	if req.PlacedAt != nil {
		order.PlacedAt = req.PlacedAt.UTC()
	}

	for _, line := range req.Lines {
		productID, err := snowflake.ParseString(line.ProductID)
		if err != nil || productID == 0 {
			AbortWithError(c, newValidationError("lines", "product_id", "line product id is not valid"))
			return evaluation.Order{}, false
		}
		if line.Quantity <= 0 {
			AbortWithError(c, newValidationError("lines", "quantity", "line quantity must be positive"))
			return evaluation.Order{}, false
		}
		order.Lines = append(order.Lines, evaluation.OrderLine{
			ProductID: productID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	return order, true
}

// @Summary      Evaluate Order
// @Description  Evaluate an order against the active catalog and commit usage
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        request body evaluateOrderRequest true "Evaluate Order Request"
// @Success      200  {object}  evaluation.Result
// @Router       /orders/evaluate [post]
func (s *Server) EvaluateOrder(c *gin.Context) {
	var req evaluateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	order, ok := s.orderFromRequest(c, req)
	if !ok {
		return
	}

	result, err := s.engine.EvaluateOrder(c.Request.Context(), order)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// @Summary      Preview Order
// @Description  Evaluate an order without committing any usage
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        request body evaluateOrderRequest true "Preview Order Request"
// @Success      200  {object}  evaluation.Result
// @Router       /orders/preview [post]
func (s *Server) PreviewOrder(c *gin.Context) {
	var req evaluateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	order, ok := s.orderFromRequest(c, req)
	if !ok {
		return
	}

	result, err := s.engine.Preview(c.Request.Context(), order)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

type reverseApplicationRequest struct {
	PromotionID string          `json:"promotion_id"`
	Amount      decimal.Decimal `json:"amount"`
	Pieces      int64           `json:"pieces"`
}

type reverseOrderRequest struct {
	ClientID string                      `json:"client_id"`
	Applied  []reverseApplicationRequest `json:"applied"`
}

// @Summary      Reverse Order
// @Description  Undo the usage a cancelled order committed, promotion by promotion
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        request body reverseOrderRequest true "Reverse Order Request"
// @Success      200  {object}  map[string]any
// @Router       /orders/reverse [post]
func (s *Server) ReverseOrder(c *gin.Context) {
	var req reverseOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	tenantID, ok := tenantcontext.TenantIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, promotiondomain.ErrInvalidTenant)
		return
	}
	clientID, err := snowflake.ParseString(req.ClientID)
	if err != nil || clientID == 0 {
		AbortWithError(c, newValidationError("client_id", "required", "client id is required"))
		return
	}
	if len(req.Applied) == 0 {
		AbortWithError(c, newValidationError("applied", "required", "at least one applied promotion is required"))
		return
	}

	applied := make([]evaluation.AppliedPromotion, 0, len(req.Applied))
	for _, app := range req.Applied {
		promotionID, err := snowflake.ParseString(app.PromotionID)
		if err != nil || promotionID == 0 {
			AbortWithError(c, newValidationError("applied", "promotion_id", "applied promotion id is not valid"))
			return
		}
		applied = append(applied, evaluation.AppliedPromotion{
			PromotionID: promotionID,
			Delta: ledgerdomain.Delta{
				Uses:    1,
				Amount:  app.Amount,
				Savings: app.Amount,
				Pieces:  app.Pieces,
			},
		})
	}

	if err := s.engine.ReverseOrder(c.Request.Context(), tenantID, clientID, applied); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"reversed": len(applied)}})
}
