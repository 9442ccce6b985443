package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"

	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/logger"
)

// CreatorClaims identifies the creator a request acts for. Subject wins over
// Issuer, which older tokens used for the same purpose.
type CreatorClaims struct {
	CreatorID string `json:"creator_id,omitempty"`
	jwt.StandardClaims
}

func (c CreatorClaims) creator() string {
	switch {
	case c.CreatorID != "":
		return c.CreatorID
	case c.Subject != "":
		return c.Subject
	}
	return c.Issuer
}

// Auth validates an HS256 bearer token signed with secretKey and stores the
// creator id under "creator_id".
func Auth(secretKey string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authorization := ctx.Request.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(authorization, "Bearer ")
		if !ok || raw == "" {
			unauthorized(ctx, "Unauthorized")
			return
		}

		var claims CreatorClaims
		token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return []byte(secretKey), nil
		})
		if err != nil || !token.Valid {
			unauthorized(ctx, reason(err))
			return
		}
		creatorID := claims.creator()
		if creatorID == "" {
			unauthorized(ctx, "token has no subject")
			return
		}
		ctx.Set("creator_id", creatorID)
		ctx.Next()
	}
}

func reason(err error) string {
	var ve *jwt.ValidationError
	if errors.As(err, &ve) {
		if ve.Errors&jwt.ValidationErrorMalformed != 0 {
			return "That's not even a token"
		} else if ve.Errors&(jwt.ValidationErrorExpired|jwt.ValidationErrorNotValidYet) != 0 {
			return "Timing is everything"
		}
	}
	logger.GetLogger().WithError(err).Debug("rejected bearer token")
	return "Unauthorized"
}

func unauthorized(ctx *gin.Context, msg string) {
	ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"response_code": "401", "response_message": msg})
}
