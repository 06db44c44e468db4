package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/suPer8Hu/pantry-assistant/internal/models"
)

const issuer = "pantry-client"

var ErrInvalidToken = errors.New("invalid identity token")

type identityClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// SignIdentity encodes id as an HS256 token for the persisted slot.
// ttl <= 0 means the token does not expire.
func SignIdentity(id models.Identity, secret string, ttl time.Duration) (string, error) {
	if !id.Valid() {
		return "", ErrInvalidToken
	}
	now := time.Now()
	claims := identityClaims{
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  id.ID,
			Issuer:   issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseIdentity verifies a token written by SignIdentity.
func ParseIdentity(token, secret string) (models.Identity, error) {
	var claims identityClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		return models.Identity{}, errors.Join(ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return models.Identity{}, ErrInvalidToken
	}
	return models.Identity{ID: claims.Subject, Email: claims.Email}, nil
}
