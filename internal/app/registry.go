package app

import (
	"net/http"

	"go-hrms/internal/auth"
	"go-hrms/internal/config"
	"go-hrms/internal/employee"
	"go-hrms/internal/leave"
	"go-hrms/internal/messaging/kafka"
	"go-hrms/internal/middleware"
	"go-hrms/internal/notification"
	"go-hrms/internal/rbac"
	"go-hrms/internal/rbac/infra"
	"go-hrms/internal/shared/response"

	"github.com/casbin/casbin/v2"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func newRBACService(cfg *config.Config) (rbac.Service, error) {
	var (
		enforcer *casbin.Enforcer
		err      error
	)
	if cfg.RBAC.ModelPath != "" {
		enforcer, err = infra.NewEnforcerFromFile(cfg.RBAC.ModelPath)
	} else {
		enforcer, err = infra.NewEnforcer()
	}
	if err != nil {
		return nil, err
	}
	return rbac.NewService(enforcer, rbac.DefaultGrants)
}

func registerModules(router *gin.Engine, cfg *config.Config, deps *Infra) error {
	logger := zap.L()

	entitlements, err := leave.LoadEntitlements(cfg.Leave.EntitlementsPath)
	if err != nil {
		return err
	}

	// --- Repositories ---
	authRepo := auth.NewRepository(deps.GormDB)
	employeeRepo := employee.NewRepository(deps.GormDB)
	leaveRepo := leave.NewRepository(deps.GormDB)
	notificationRepo := notification.NewRepository(deps.GormDB)
	outboxRepo := kafka.NewOutboxRepository(deps.DB)

	// --- RBAC Core ---
	rbacService, err := newRBACService(cfg)
	if err != nil {
		return err
	}

	// --- Services ---
	authService := auth.NewService(authRepo, cfg.JWT, logger)
	leaveService := leave.NewServiceWithOutbox(
		deps.DB,
		leaveRepo,
		employeeRepo,
		rbacService,
		leave.NewBalanceCalculator(entitlements),
		outboxRepo,
		deps.Redis,
		cfg.Leave.BalanceCacheTTL,
		logger,
	)
	notificationService := notification.NewService(notificationRepo, logger)

	// --- Handlers ---
	authHandler := auth.NewHandler(authService, auth.CookieSettings{
		Secure:     cfg.App.IsProduction(),
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
	}, logger)
	leaveHandler := leave.NewHandler(leaveService, deps.Redis, logger)
	notificationHandler := notification.NewHandler(notificationService, logger)
	rbacHandler := rbac.NewHandler(rbacService, logger)

	router.GET("/healthz", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"}, nil)
	})

	// --- Routes Registration ---
	api := router.Group("/api/v1")
	{
		auth.RegisterRoutes(api, authHandler, cfg.JWT.Secret)
		leave.RegisterRoutes(api, leaveHandler, rbacService, deps.Redis, cfg.JWT.Secret)
		notification.RegisterRoutes(api, notificationHandler, rbacService, cfg.JWT.Secret)
		rbac.RegisterRoutes(api, rbacHandler,
			middleware.AuthMiddleware(cfg.JWT.Secret),
			middleware.RoleMiddleware(rbac.RoleAdmin),
		)
	}

	return nil
}
