// Package auth registers accounts, verifies credentials and issues the JWTs
// the HTTP layer trusts. Password hashes never leave this package or the
// repository.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/orderdesk/orderdesk/internal/domain"
	"github.com/orderdesk/orderdesk/internal/repository"
)

const tokenTTL = 12 * time.Hour

// Identity is the authenticated caller as carried through a request.
type Identity struct {
	UserID int64
	Role   domain.Role
}

type Service struct {
	users  repository.UserRepository
	secret []byte
	log    zerolog.Logger
}

func NewService(users repository.UserRepository, secret string, log zerolog.Logger) *Service {
	return &Service{users: users, secret: []byte(secret), log: log}
}

// Register creates an account with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, username, password string, role domain.Role) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("username is required: %w", domain.ErrValidation)
	}
	if len(password) < 4 {
		return nil, fmt.Errorf("password too short: %w", domain.ErrValidation)
	}
	if role == "" {
		role = domain.RoleUser
	}
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q: %w", role, domain.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &domain.User{Username: username, PasswordHash: string(hash), Role: role}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info().Str("username", username).Str("role", string(role)).Msg("user registered")
	return u, nil
}

// Login checks the credentials and returns a signed token. Wrong username and
// wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (string, *domain.User, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil, fmt.Errorf("bad credentials: %w", domain.ErrUnauthorized)
		}
		return "", nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", nil, fmt.Errorf("bad credentials: %w", domain.ErrUnauthorized)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(u.ID, 10),
		"role": string(u.Role),
		"jti":  uuid.NewString(),
		"iat":  now.Unix(),
		"exp":  now.Add(tokenTTL).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, err
	}
	s.log.Info().Str("username", username).Msg("login")
	return token, u, nil
}

// ParseToken validates a bearer token and recovers the caller's identity.
func (s *Service) ParseToken(tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("invalid token: %w", domain.ErrUnauthorized)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, fmt.Errorf("invalid claims: %w", domain.ErrUnauthorized)
	}
	sub, _ := claims["sub"].(string)
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return Identity{}, fmt.Errorf("invalid subject: %w", domain.ErrUnauthorized)
	}
	roleStr, _ := claims["role"].(string)
	role := domain.Role(roleStr)
	if !role.Valid() {
		return Identity{}, fmt.Errorf("invalid role: %w", domain.ErrUnauthorized)
	}
	return Identity{UserID: id, Role: role}, nil
}
