package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	obscontext "github.com/vendora/promokit/internal/observability/context"
	"github.com/vendora/promokit/internal/tenantcontext"
)

const tenantIDHeader = "X-Tenant-Id"

// TenantMiddleware resolves the tenant from the request header and
// attaches it to the request context. Every /v1 route is tenant-scoped;
// requests without a resolvable tenant are rejected before any handler
// runs.
func (s *Server) TenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(tenantIDHeader))
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{
				"code":    "missing_tenant",
				"message": "X-Tenant-Id header is required",
			}})
			return
		}
		tenantID, err := snowflake.ParseString(raw)
		if err != nil || tenantID == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{
				"code":    "invalid_tenant",
				"message": "X-Tenant-Id header is not a valid id",
			}})
			return
		}

		c.Set("tenant_id", tenantID.String())
		ctx := tenantcontext.WithTenantID(c.Request.Context(), tenantID)
		ctx = obscontext.WithTenantID(ctx, tenantID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RateLimitMiddleware applies a fixed-window limit per tenant so one
// tenant's burst cannot starve the evaluation path for everyone else.
func (s *Server) RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := obscontext.TenantIDFromGin(c)
		if key == "" {
			key = c.ClientIP()
		}
		if !s.limiter.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": gin.H{
				"code":    "rate_limited",
				"message": "too many requests, slow down",
			}})
			return
		}
		c.Next()
	}
}
