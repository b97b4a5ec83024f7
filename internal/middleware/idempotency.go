package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go-hrms/internal/shared/apperror"
	"go-hrms/internal/shared/response"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	idempotencyCacheKey = "idempotency_cache_key"
	idempotencyLockKey  = "idempotency_lock_key"
	idempotencyLockTTL  = 30 * time.Second
)

type cachedResponse struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// Idempotency replays the stored response of a POST carrying a previously
// seen Idempotency-Key, and rejects a concurrent duplicate while the first
// one is still running.
func Idempotency(rdb *redis.Client) gin.HandlerFunc {
	logger := zap.L().Named("middleware.idempotency")

	return func(c *gin.Context) {
		idempKey := c.GetHeader("Idempotency-Key")
		if idempKey == "" || c.Request.Method != http.MethodPost || rdb == nil {
			c.Next()
			return
		}

		userID := c.GetString("user_id_validated")
		if userID == "" {
			userID = c.GetString("user_id")
		}
		ctx := c.Request.Context()

		cacheKey := fmt.Sprintf("idemp:%s:%s:%s", c.FullPath(), userID, idempKey)
		lockKey := cacheKey + ":lock"

		if val, err := rdb.Get(ctx, cacheKey).Result(); err == nil {
			var cached cachedResponse
			if jsonErr := json.Unmarshal([]byte(val), &cached); jsonErr == nil {
				logger.Debug("idempotent replay", zap.String("key", cacheKey))
				c.Header("Idempotent-Replayed", "true")
				response.Success(c, cached.Status, cached.Data, nil)
				c.Abort()
				return
			}
		} else if !errors.Is(err, redis.Nil) {
			// cache unavailable: proceed without idempotency
			logger.Warn("idempotency lookup failed", zap.Error(err))
			c.Next()
			return
		}

		isNew, err := rdb.SetNX(ctx, lockKey, "locked", idempotencyLockTTL).Result()
		if err != nil {
			logger.Warn("idempotency lock failed", zap.Error(err))
			c.Next()
			return
		}
		if !isNew {
			abortWith(c, http.StatusConflict, apperror.CodeConflict, "Request with this Idempotency-Key is still being processed")
			return
		}

		c.Set(idempotencyCacheKey, cacheKey)
		c.Set(idempotencyLockKey, lockKey)

		c.Next()
	}
}

// StoreIdempotentResponse caches data for replay and releases the lock taken
// by Idempotency. It is a no-op when the request carried no key.
func StoreIdempotentResponse(c *gin.Context, rdb *redis.Client, status int, data any, ttl time.Duration) {
	if rdb == nil {
		return
	}
	cacheKey := c.GetString(idempotencyCacheKey)
	lockKey := c.GetString(idempotencyLockKey)
	if cacheKey == "" {
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	if raw, err := json.Marshal(data); err == nil {
		payload, _ := json.Marshal(cachedResponse{Status: status, Data: raw})
		if err := rdb.Set(ctx, cacheKey, string(payload), ttl).Err(); err != nil {
			zap.L().Named("middleware.idempotency").Warn("store idempotent response failed", zap.Error(err))
		}
	}
	rdb.Del(ctx, lockKey)
}

// ReleaseIdempotencyLock drops the lock after a failed request so the client
// may retry with the same key.
func ReleaseIdempotencyLock(c *gin.Context, rdb *redis.Client) {
	if rdb == nil {
		return
	}
	if lockKey := c.GetString(idempotencyLockKey); lockKey != "" {
		rdb.Del(context.WithoutCancel(c.Request.Context()), lockKey)
	}
}
