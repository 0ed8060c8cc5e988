package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/residence/internal/authorization"
	obscontext "github.com/smallbiznis/residence/internal/observability/context"
)

const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
	HeaderIngestKey = "X-Ingest-Key"

	contextActorKey    = "actor"
	contextContractKey = "student_contract"

	meterActorID = "meter"
)

// ActorRequired resolves the caller from the gateway headers, or from a
// meter ingest key, and rejects anonymous requests.
func (s *Server) ActorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := s.resolveActor(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextActorKey, actor)
		ctx := obscontext.WithActor(c.Request.Context(), actor.ID, actor.Role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) resolveActor(c *gin.Context) (authorization.Actor, bool) {
	if key := strings.TrimSpace(c.GetHeader(HeaderIngestKey)); key != "" {
		if !s.ingestKeys.Verify(key) {
			return authorization.Actor{}, false
		}
		return authorization.Actor{ID: meterActorID, Role: authorization.RoleMeter}, true
	}

	actorID := strings.TrimSpace(c.GetHeader(HeaderActorID))
	role := strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderActorRole)))
	if actorID == "" || role == "" {
		return authorization.Actor{}, false
	}
	// Meters only authenticate with the ingest key.
	if role == authorization.RoleMeter {
		return authorization.Actor{}, false
	}
	return authorization.Actor{ID: actorID, Role: role}, true
}

func actorFromContext(c *gin.Context) (authorization.Actor, bool) {
	if c == nil {
		return authorization.Actor{}, false
	}
	actor, ok := c.Get(contextActorKey)
	if !ok {
		return authorization.Actor{}, false
	}
	value, ok := actor.(authorization.Actor)
	return value, ok
}

func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), actor, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// studentIDFromContext returns the acting student's id. Student actors
// carry their snowflake id in X-Actor-ID.
func studentIDFromContext(c *gin.Context) (snowflake.ID, error) {
	actor, ok := actorFromContext(c)
	if !ok || actor.Role != authorization.RoleStudent {
		return 0, ErrUnauthorized
	}
	id, err := snowflake.ParseString(actor.ID)
	if err != nil || id <= 0 {
		return 0, ErrUnauthorized
	}
	return id, nil
}

func actorIDFromContext(c *gin.Context) string {
	actor, ok := actorFromContext(c)
	if !ok {
		return ""
	}
	return actor.ID
}

// RequireAcceptance blocks the request with 403 while the student has not
// accepted the active regulation of the residence returned by residenceOf.
// Residences without an active regulation pass through.
func (s *Server) RequireAcceptance(residenceOf func(c *gin.Context) (snowflake.ID, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		studentID, err := studentIDFromContext(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		residenceID, err := residenceOf(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		status, err := s.complianceSvc.Check(c.Request.Context(), studentID, residenceID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if status != nil && !status.HasAccepted {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": errorPayload{
					Type:    "forbidden",
					Code:    "regulation_not_accepted",
					Message: "the active regulation must be accepted first",
				},
				"data": status,
			})
			return
		}
		c.Next()
	}
}
