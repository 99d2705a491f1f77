package middleware

import (
	"github.com/gin-gonic/gin"

	appctx "millstock/internal/core/context"
	"millstock/internal/core/tenant"
)

// OperatorHeader identifies the person driving the client.
const OperatorHeader = "X-Operator"

// Operator puts the operator from the request header into context so
// documents can record who created them. The header is optional.
func Operator() gin.HandlerFunc {
	return func(c *gin.Context) {
		operator := c.GetHeader(OperatorHeader)
		if operator == "" {
			c.Next()
			return
		}

		ctx := appctx.WithUser(c.Request.Context(), &appctx.UserContext{
			UserID:   operator,
			TenantID: tenant.GetTenantID(c.Request.Context()),
			Name:     operator,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
