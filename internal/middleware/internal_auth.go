package middleware

import (
	"strings"

	"github.com/YF-George/lobbysync/internal/errors"

	"github.com/gin-gonic/gin"
)

// InternalAuth guards routes meant for sibling services (the sync
// endpoint). Identity query hints on public routes are advisory and
// never pass through here.
func InternalAuth(secret string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := strings.TrimPrefix(
			ctx.GetHeader("Authorization"),
			"Bearer ",
		)

		if secret != "" && token != secret {
			ctx.Error(errors.Unauthorized("Unauthorized internal call!", nil))
			ctx.Abort()
			return
		}

		ctx.Next()
	}
}
