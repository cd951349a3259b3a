package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"tripbooking/internal/domain"
	"tripbooking/internal/http/middleware"
)

// BindJSONOrError ensures body is present and parsable.
func BindJSONOrError[T any](c *gin.Context, dst *T) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		respondError(c, http.StatusBadRequest, "empty_body", "request body is required", nil)
		return false
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_payload", "invalid payload: "+err.Error(), nil)
		return false
	}
	return true
}

// requireActor returns the authenticated caller or writes 401.
func requireActor(c *gin.Context) (domain.Actor, bool) {
	actor := middleware.GetActor(c)
	if !actor.Valid() {
		respondError(c, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		return domain.Actor{}, false
	}
	return actor, true
}

func pathID(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respondError(c, http.StatusBadRequest, "invalid_id", "id is required", nil)
		return "", false
	}
	return id, true
}

// queryInt reads a positive integer query param; invalid values fall back.
func queryInt(c *gin.Context, name string, fallback int) int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
