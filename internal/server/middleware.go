package server

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/wastebill/internal/authorization"
	obscontext "github.com/smallbiznis/wastebill/internal/observability/context"
)

const (
	HeaderActorRole = "X-Actor-Role"
	HeaderActorID   = "X-Actor-ID"

	contextRoleKey = "actor_role"
)

// WithActorRole resolves the caller's role from X-Actor-Role. A missing
// header is the default role, which holds no capabilities.
func (s *Server) WithActorRole() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, err := authorization.ParseRole(c.GetHeader(HeaderActorRole))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := c.Request.Context()
		actorID := strings.TrimSpace(c.GetHeader(HeaderActorID))
		if actorID == "" {
			actorID = string(role)
		}
		ctx = obscontext.WithActor(ctx, "user", actorID)
		ctx = obscontext.WithActorRole(ctx, string(role))
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextRoleKey, role)
		c.Next()
	}
}

// RequireCapability aborts with 403 unless the caller role holds resource:action.
func (s *Server) RequireCapability(resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.authzSvc == nil {
			AbortWithError(c, authorization.ErrForbidden)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), roleFromContext(c), resource, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func roleFromContext(c *gin.Context) authorization.Role {
	if v, ok := c.Get(contextRoleKey); ok {
		if role, ok := v.(authorization.Role); ok {
			return role
		}
	}
	return authorization.RoleDefault
}

// CallbackRateLimit throttles provider callbacks per client address.
func (s *Server) CallbackRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		res := s.limiter.Allow(c.Request.Context(), c.ClientIP())
		if res.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		}
		if !res.Allowed {
			if res.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			}
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

func (s *Server) Capabilities(c *gin.Context) {
	role := roleFromContext(c)
	caps := []authorization.Capability{}
	if s.authzSvc != nil {
		caps = append(caps, s.authzSvc.Capabilities(role)...)
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"role":         role,
		"capabilities": caps,
	}})
}
