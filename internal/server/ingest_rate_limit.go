package server

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/residence/internal/authorization"
	"github.com/smallbiznis/residence/internal/observability/logger"
	"go.uber.org/zap"
)

// IngestRateLimit throttles meter actors. Operators are never limited.
func (s *Server) IngestRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.ingestLimiter == nil {
			c.Next()
			return
		}
		actor, ok := actorFromContext(c)
		if !ok || actor.Role != authorization.RoleMeter {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		res, err := s.ingestLimiter.Allow(ctx, actor.ID)
		if err != nil {
			logger.FromContext(ctx).Warn("ingest rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !res.Allowed {
			logger.FromContext(ctx).Warn("ingest rate limit exceeded", zap.String("actor_id", actor.ID))
			retryAfter := int(math.Ceil(res.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
