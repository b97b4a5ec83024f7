package leave

import (
	"go-hrms/internal/middleware"
	"go-hrms/internal/rbac"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func RegisterRoutes(
	r *gin.RouterGroup,
	handler *Handler,
	authz middleware.Authorizer,
	rdb *redis.Client,
	jwtSecret string,
) {
	leaves := r.Group("/leaves")
	leaves.Use(middleware.AuthMiddleware(jwtSecret), middleware.ExtractUserID())
	{
		read := middleware.RBACAuthorize(authz, rbac.ResourceLeave, rbac.ActionReadOwn, rbac.ActionReadAny)
		balance := middleware.RBACAuthorize(authz, rbac.ResourceLeave, rbac.ActionBalanceOwn, rbac.ActionBalanceAny)

		leaves.GET("", read, handler.GetAll)
		leaves.GET("/stats", middleware.RBACAuthorize(authz, rbac.ResourceLeave, rbac.ActionStats), handler.GetStats)
		leaves.GET("/balance", balance, handler.GetBalance)
		leaves.GET("/balance/:employeeId", balance, handler.GetBalance)
		leaves.GET("/:id", read, handler.GetById)
		leaves.POST("",
			middleware.RBACAuthorize(authz, rbac.ResourceLeave, rbac.ActionCreate),
			middleware.RateLimitByUser(1, 5),
			middleware.Idempotency(rdb),
			handler.Create,
		)
		leaves.PUT("/:id", middleware.RBACAuthorize(authz, rbac.ResourceLeave, rbac.ActionUpdateOwn), handler.Update)
		leaves.PATCH("/:id/approve", middleware.RBACAuthorize(authz, rbac.ResourceLeave, rbac.ActionApprove), handler.Approve)
		leaves.PATCH("/:id/reject", middleware.RBACAuthorize(authz, rbac.ResourceLeave, rbac.ActionApprove), handler.Reject)
		leaves.PATCH("/:id/cancel",
			middleware.RBACAuthorize(authz, rbac.ResourceLeave, rbac.ActionCancelOwn, rbac.ActionCancelAny),
			handler.Cancel,
		)
		leaves.PATCH("/:id/return",
			middleware.RBACAuthorize(authz, rbac.ResourceLeave, rbac.ActionUpdateOwn, rbac.ActionReturnAny),
			handler.RecordReturn,
		)
	}
}
