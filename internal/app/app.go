package app

import (
	"database/sql"
	"time"

	"go-hrms/internal/config"
	"go-hrms/internal/middleware"
	"go-hrms/internal/shared/connection"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Infra bundles the connections shared by the three binaries.
type Infra struct {
	GormDB *gorm.DB
	DB     *sql.DB
	Redis  *redis.Client
}

func (i *Infra) Close() {
	if i.Redis != nil {
		_ = i.Redis.Close()
	}
	if i.DB != nil {
		_ = i.DB.Close()
	}
}

func connectInfra(cfg *config.Config, withRedis bool) (*Infra, error) {
	logger := zap.L().Named("app")

	gormDB, err := connection.ConnectGORMWithRetry(cfg.Database)
	if err != nil {
		return nil, err
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, err
	}
	logger.Info("database connection established")

	infra := &Infra{GormDB: gormDB, DB: sqlDB}
	if withRedis && cfg.Redis.Addr != "" {
		rdb, err := connection.ConnectRedisWithRetry(cfg.Redis.Addr, cfg.Database.MaxRetries)
		if err != nil {
			infra.Close()
			return nil, err
		}
		infra.Redis = rdb
		logger.Info("redis connection established")
	}
	return infra, nil
}

// BuildApp connects infrastructure, installs global middleware and
// registers every module on router. The returned Infra must be closed by
// the caller.
func BuildApp(router *gin.Engine, cfg *config.Config) (*Infra, error) {
	infra, err := connectInfra(cfg, true)
	if err != nil {
		return nil, err
	}

	router.Use(
		middleware.RequestID(),
		middleware.ContextLogger(zap.L()),
		cors.New(cors.Config{
			AllowOrigins:     cfg.HTTP.AllowOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key", "X-Request-ID", "X-Client-Type"},
			ExposeHeaders:    []string{"X-Request-ID", "Idempotent-Replayed"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	)

	if err := registerModules(router, cfg, infra); err != nil {
		infra.Close()
		return nil, err
	}
	return infra, nil
}
