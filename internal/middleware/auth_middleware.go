package middleware

import (
	"errors"
	"strings"

	autherrors "go-hrms/internal/auth/errors"
	"go-hrms/internal/auth/token"
	"go-hrms/internal/rbac"
	"go-hrms/internal/shared/response"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware accepts a bearer token or the access_token cookie and puts
// user_id and role on the gin context.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !found {
			tokenString = ""
		}

		if tokenString == "" {
			if cookie, err := c.Cookie("access_token"); err == nil {
				tokenString = cookie
			}
		}

		if tokenString == "" {
			abortWith(c, autherrors.ErrMissingToken.HTTPStatus, autherrors.ErrMissingToken.Code, autherrors.ErrMissingToken.Message)
			return
		}

		claims, err := token.Parse(secret, tokenString, token.TypeAccess)
		if err != nil {
			errObj := autherrors.ErrInvalidToken
			if errors.Is(err, token.ErrExpired) {
				errObj = autherrors.ErrTokenExpired
			}
			abortWith(c, errObj.HTTPStatus, errObj.Code, errObj.Message)
			return
		}

		role, err := rbac.ParseRole(claims.Role)
		if err != nil {
			abortWith(c, autherrors.ErrInvalidToken.HTTPStatus, autherrors.ErrInvalidToken.Code, "Role not recognised")
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("role", string(role))

		c.Next()
	}
}

// RoleMiddleware lets through only the listed roles.
func RoleMiddleware(allowedRoles ...rbac.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole := rbac.Role(c.GetString("role"))

		for _, role := range allowedRoles {
			if userRole == role {
				c.Next()
				return
			}
		}

		abortWith(c, autherrors.ErrForbidden.HTTPStatus, autherrors.ErrForbidden.Code, autherrors.ErrForbidden.Message)
	}
}

func abortWith(c *gin.Context, status int, code, message string) {
	response.Abort(c, status, code, message)
}
