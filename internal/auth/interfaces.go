package auth

import (
	"context"

	"github.com/hugh/taskhub/internal/database/models"
)

// Authenticator defines the signup, verification and login flow.
type Authenticator interface {
	Signup(ctx context.Context, input SignupInput) (*SignupResult, error)
	VerifyOTP(ctx context.Context, input VerifyOTPInput) error
	Login(ctx context.Context, input LoginInput) (*LoginResult, error)
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
}

// TokenService defines the interface for JWT token operations.
type TokenService interface {
	GenerateToken(userID, orgID uint, email, role string) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
}

// CodeDispatcher hands a freshly issued code to an out-of-band channel.
type CodeDispatcher interface {
	DispatchCode(ctx context.Context, userID uint, email, code string) error
}

// IssueLimiter decides whether another code may be issued to email.
type IssueLimiter interface {
	Allow(ctx context.Context, email string) error
}

// Compile-time interface satisfaction checks
var (
	_ Authenticator = (*Service)(nil)
	_ TokenService  = (*JWTService)(nil)
	_ IssueLimiter  = (*Throttle)(nil)
)
