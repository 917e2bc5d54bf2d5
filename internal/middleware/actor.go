package middleware

import (
	"net/http"

	"distribuidora/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ActorKey    = "actor"
	ActorHeader = "X-Usuario-ID"
)

// Actor reads the acting user from X-Usuario-ID. Authentication happens
// upstream; the id only attributes history rows and route settlements.
// A missing header leaves the actor as uuid.Nil.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(ActorHeader)
		if raw == "" {
			c.Set(ActorKey, uuid.Nil)
			c.Next()
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, apierror.New(ActorHeader+" invalido"))
			return
		}
		c.Set(ActorKey, id)
		c.Next()
	}
}

// GetActor is a helper to retrieve the acting user from the Gin context.
func GetActor(c *gin.Context) uuid.UUID {
	id, _ := c.Get(ActorKey)
	actor, _ := id.(uuid.UUID)
	return actor
}
