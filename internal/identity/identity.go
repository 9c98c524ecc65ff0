package identity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sethvargo/go-retry"

	"github.com/mosshollow/questwick/internal/auth"
	"github.com/mosshollow/questwick/internal/core"
	"github.com/mosshollow/questwick/internal/model"
	"github.com/mosshollow/questwick/internal/store"
)

const tokenTTL = 24 * time.Hour

// Claims are the JWT claims carried in a session token. The subject is the
// user ID; role and household are resolved fresh from the database on every
// request so a role change takes effect without reissuing the token.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Service issues and resolves session tokens.
type Service struct {
	users  *store.UserStore
	admins *store.AdminStore
	secret []byte
	logger *slog.Logger
}

func NewService(users *store.UserStore, admins *store.AdminStore, secret []byte, logger *slog.Logger) *Service {
	return &Service{users: users, admins: admins, secret: secret, logger: logger}
}

// IssueToken creates a signed session token for a user.
func (s *Service) IssueToken(user *model.User, now time.Time) (string, error) {
	claims := Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a session token and returns its claims.
func (s *Service) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, core.Unauthorized("invalid or expired token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, core.Unauthorized("invalid token claims")
	}
	return claims, nil
}

// Resolve turns a bearer token into an authenticated context. The profile
// lookup retries briefly because SQLite can return transient busy errors
// under write contention.
func (s *Service) Resolve(ctx context.Context, tokenString string) (*auth.AuthContext, error) {
	claims, err := s.ParseToken(tokenString)
	if err != nil {
		return nil, err
	}

	var userID int64
	if _, err := fmt.Sscanf(claims.Subject, "%d", &userID); err != nil {
		return nil, core.Unauthorized("malformed token subject")
	}

	var user *model.User
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(50*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		u, err := s.users.GetByID(userID)
		if err != nil {
			return retry.RetryableError(err)
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	if user == nil {
		return nil, core.Unauthorized("unknown user")
	}
	if user.Status != model.UserStatusActive {
		return nil, core.Unauthorized("account is disabled")
	}

	isAdmin, err := s.admins.IsAdmin(user.Email)
	if err != nil {
		s.logger.Warn("admin lookup failed", "user_id", userID, "error", err)
		isAdmin = false
	}

	return &auth.AuthContext{
		UserID:      user.ID,
		HouseholdID: user.HouseholdID,
		Email:       user.Email,
		Role:        user.Role,
		Admin:       isAdmin,
	}, nil
}
