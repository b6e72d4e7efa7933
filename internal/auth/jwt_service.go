package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JWTService defines operations for managing JWT authentication tokens.
// Tokens identify the owner on the HTTP API and on notification channel
// subscriptions.
type JWTService interface {
	// GenerateToken creates a signed JWT access token for the given owner.
	// Returns the token string or an error if token generation fails.
	GenerateToken(ctx context.Context, ownerID uuid.UUID) (string, error)

	// ValidateToken validates the provided token string and extracts the claims.
	// Returns the claims containing owner information if the token is valid,
	// or an error if validation fails (expired, invalid signature, etc.).
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the custom claims structure for the JWT tokens.
// It extends standard JWT registered claims with application-specific fields.
type Claims struct {
	// OwnerID is the unique identifier of the owner the token was issued for.
	OwnerID uuid.UUID `json:"uid,omitempty"`

	// Standard registered JWT claims
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
