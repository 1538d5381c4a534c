package models

import "github.com/golang-jwt/jwt/v5"

// ReviewerClaims is the JWT claims structure issued by the identity
// provider for redaction reviewers.
type ReviewerClaims struct {
	jwt.RegisteredClaims        // Standard JWT claims (sub, iss, aud, exp, iat, etc.)
	Email                string `json:"email"`
	Role                 string `json:"role"` // "authenticated" or "anon"
	SessionID            string `json:"session_id"`
	IsAnonymous          bool   `json:"is_anonymous"`
}

// GetUserID returns the reviewer ID from the JWT subject claim.
func (c *ReviewerClaims) GetUserID() string {
	return c.Subject
}
