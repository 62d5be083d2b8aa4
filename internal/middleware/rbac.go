package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/conduct-console/internal/model"
	"github.com/stemsi/conduct-console/internal/response"
)

// RequireRole checks that the token's role is one of roles and answers 403 with
// denied otherwise.
func RequireRole(denied response.ErrCode, roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		for _, r := range roles {
			if claims.Role == r {
				c.Next()
				return
			}
		}

		response.AbortFail(c, http.StatusForbidden, denied)
	}
}

// RequireStaff admits teachers and administrators.
func RequireStaff() gin.HandlerFunc {
	return RequireRole(response.ErrStaffAccessOnly, model.RoleAdmin, model.RoleTeacher)
}
