package tenantcontext

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

type contextKey string

const tenantIDKey contextKey = "tenant_id"

// WithTenantID attaches the resolved tenant id to the context.
func WithTenantID(ctx context.Context, tenantID snowflake.ID) context.Context {
	if tenantID == 0 {
		return ctx
	}
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// TenantIDFromContext returns the tenant id previously attached to the
// context. Services treat a missing tenant as a request error.
func TenantIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}
	switch value := ctx.Value(tenantIDKey).(type) {
	case snowflake.ID:
		if value != 0 {
			return value, true
		}
	case int64:
		if value != 0 {
			return snowflake.ID(value), true
		}
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(value))
		if err == nil && parsed != 0 {
			return parsed, true
		}
	}
	return 0, false
}
