package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// IssueSessionToken signs an HS256 session token for a logged-in user.
// The subject claim carries the user id; name carries the username.
func IssueSessionToken(secret string, userID int64, username string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("JWT_SECRET is not set")
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  strconv.FormatInt(userID, 10),
		"name": username,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	})
	return token.SignedString([]byte(secret))
}

// ValidateSessionToken validates a token issued by IssueSessionToken and
// returns its claims.
func ValidateSessionToken(secret, tokenString string) (jwt.MapClaims, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is not set")
	}
	token, err := jwt.Parse(tokenString,
		func(t *jwt.Token) (interface{}, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// ValidateExternalToken validates a JWT issued by an external identity
// provider using its JWKS endpoint. jwksURL is the full URL of the JWKS
// document (AUTH_JWKS_URL).
func ValidateExternalToken(jwksURL, tokenString string) (jwt.MapClaims, error) {
	if jwksURL == "" {
		return nil, fmt.Errorf("AUTH_JWKS_URL is not set")
	}
	jwks, err := keyfunc.NewDefault([]string{jwksURL})
	if err != nil {
		return nil, err
	}
	token, err := jwt.Parse(tokenString, jwks.Keyfunc,
		jwt.WithValidMethods([]string{"RS256", "ES256", "EdDSA"}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// UserIDFromClaims returns the numeric user id from the subject claim, or 0
// when absent or malformed.
func UserIDFromClaims(claims jwt.MapClaims) int64 {
	sub, ok := claims["sub"].(string)
	if !ok {
		return 0
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// UsernameFromClaims returns the username from the name claim, or "" when
// absent.
func UsernameFromClaims(claims jwt.MapClaims) string {
	name, _ := claims["name"].(string)
	return name
}
