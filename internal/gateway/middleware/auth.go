package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storeline-pos/internal/utils"
)

// JWTAuth rejects requests without a valid bearer token and exposes the
// caller identity to handlers via the gin context.
func JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Missing or malformed authorization header",
			})
			return
		}

		claims, err := utils.ParseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Invalid or expired token",
			})
			return
		}

		c.Set("user_id", claims.UserId)
		c.Set("username", claims.Username)
		if claims.StoreId != nil {
			c.Set("store_id", *claims.StoreId)
		}
		c.Next()
	}
}
