package auth

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/ammar1510/clientdesk/internal/apperr"
	"github.com/ammar1510/clientdesk/internal/logger"
	"github.com/ammar1510/clientdesk/internal/models"
)

// TokenTTL is how long an issued token stays valid
const TokenTTL = 24 * time.Hour

var (
	ErrInvalidToken = errors.New("invalid token")
	// This variable will be initialized either from environment
	// variables or explicitly via InitJWTKey function
	jwtKey = []byte(os.Getenv("JWT_SECRET"))
	log    = logger.New("auth")
)

// InitJWTKey initializes the JWT key with the provided secret
// This allows for explicit initialization after environment variables are loaded
// or for setting a custom key during testing
func InitJWTKey(key []byte) {
	jwtKey = key
}

// JWTClaims represents the claims in the JWT
type JWTClaims struct {
	UserID string      `json:"user_id"`
	Name   string      `json:"name"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller, shared by REST requests and socket connections
type Identity struct {
	UserID string
	Name   string
	Role   models.Role
}

// GenerateToken creates a new JWT token for a user
func GenerateToken(user *models.User) (string, time.Time, error) {
	return GenerateTokenWithTTL(user, TokenTTL)
}

// GenerateTokenWithTTL is GenerateToken with an explicit lifetime
func GenerateTokenWithTTL(user *models.User, ttl time.Duration) (string, time.Time, error) {
	// Check for nil user
	if user == nil {
		return "", time.Time{}, errors.New("user cannot be nil")
	}

	if user.ID == "" {
		return "", time.Time{}, errors.New("user ID cannot be empty")
	}

	now := time.Now()
	expirationTime := now.Add(ttl)

	claims := &JWTClaims{
		UserID: user.ID,
		Name:   user.Name,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   user.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(jwtKey)
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expirationTime, nil
}

// ValidateToken validates a JWT token and returns the claims
func ValidateToken(tokenString string) (*JWTClaims, error) {
	if tokenString == "" {
		log.Warn("Validating empty token")
		return nil, ErrInvalidToken
	}

	claims := &JWTClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Check signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			log.Error("Unexpected signing method: %v", token.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtKey, nil
	})

	if err != nil {
		log.Debug("Token validation error: %v", err)
		return nil, err
	}

	if !token.Valid {
		log.Warn("Token is invalid")
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GetUserIDFromToken extracts the UserID from claims
func GetUserIDFromToken(claims *JWTClaims) (uuid.UUID, error) {
	if claims == nil {
		return uuid.Nil, errors.New("claims cannot be nil")
	}
	return uuid.Parse(claims.UserID)
}

// Authenticate turns a raw token into an Identity. Every failure is an
// UNAUTHENTICATED apperr.
func Authenticate(tokenString string) (*Identity, error) {
	claims, err := ValidateToken(tokenString)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeUnauthenticated, "Invalid or expired token", err)
	}

	userID, err := GetUserIDFromToken(claims)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeUnauthenticated, "Invalid user ID format in token", err)
	}

	return &Identity{
		UserID: userID.String(),
		Name:   claims.Name,
		Role:   claims.Role,
	}, nil
}

// TokenFromRequest finds the token of a request: the "token" query parameter
// (the socket handshake auth field) first, then an "Authorization: Bearer" header.
func TokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}
