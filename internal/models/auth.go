package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the marketplace roles carried in access tokens.
type UserRole string

const (
	RoleAdmin        UserRole = "ADMIN"
	RolePsychologist UserRole = "PSYCHOLOGIST"
	RoleClient       UserRole = "CLIENT"
)

// JWTClaims represents the JWT payload for access tokens issued by the marketplace backend.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Actor identifies who performs a scheduling operation.
type Actor struct {
	UserID    string
	Role      UserRole
	Token     string
	IPAddress string
	UserAgent string
}
