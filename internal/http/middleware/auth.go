package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"tripbooking/internal/domain"
)

const actorKey = "actor"

// Auth verifies an HS256 bearer token and stores its user_id claim as the
// request actor. Token issuance lives outside this service.
func Auth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c, "authorization bearer token required")
			return
		}
		if len(key) == 0 {
			abortUnauthorized(c, "authentication is not configured")
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
			return key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
		if err != nil || !token.Valid {
			abortUnauthorized(c, "invalid token")
			return
		}

		actor, err := actorFromClaims(claims)
		if err != nil {
			abortUnauthorized(c, err.Error())
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// GetActor returns the authenticated caller, or the zero Actor.
func GetActor(c *gin.Context) domain.Actor {
	a, _ := lookupActor(c)
	return a
}

func lookupActor(c *gin.Context) (domain.Actor, bool) {
	if c == nil {
		return domain.Actor{}, false
	}
	v, ok := c.Get(actorKey)
	if !ok {
		return domain.Actor{}, false
	}
	a, ok := v.(domain.Actor)
	return a, ok && a.Valid()
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func actorFromClaims(claims jwt.MapClaims) (domain.Actor, error) {
	if v, ok := claims["user_id"].(string); ok && strings.TrimSpace(v) != "" {
		return domain.Actor{ID: strings.TrimSpace(v)}, nil
	}
	if sub, err := claims.GetSubject(); err == nil && strings.TrimSpace(sub) != "" {
		return domain.Actor{ID: strings.TrimSpace(sub)}, nil
	}
	return domain.Actor{}, errors.New("token has no user_id claim")
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":      msg,
		"code":       "unauthorized",
		"message":    msg,
		"request_id": GetRequestID(c),
	})
}
