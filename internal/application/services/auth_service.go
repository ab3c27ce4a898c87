package services

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/promptcrm/backend/internal/domain/schema"
	"github.com/promptcrm/backend/internal/infrastructure/persistence"
	"github.com/promptcrm/backend/pkg/auth"
	apperrors "github.com/promptcrm/backend/pkg/errors"
	"github.com/promptcrm/backend/pkg/utils"
)

// AuthResult is a signed session token plus the public user view
type AuthResult struct {
	Token string       `json:"token"`
	User  *schema.User `json:"user"`
}

// AuthService handles registration and login
type AuthService struct {
	users *persistence.UserRepository
}

// NewAuthService creates a new AuthService
func NewAuthService(users *persistence.UserRepository) *AuthService {
	return &AuthService{users: users}
}

// Register creates a new user account and returns a session token
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))

	if name == "" {
		return nil, apperrors.NewValidationError("name", "name is required")
	}
	if !auth.IsValidEmail(email) {
		return nil, apperrors.NewValidationError("email", "invalid email address")
	}
	if err := auth.ValidatePasswordStrength(password); err != nil {
		return nil, apperrors.NewValidationError("password", err.Error())
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to check existing user", err)
	}
	if existing != nil {
		return nil, apperrors.NewConflictError("User", "email", email)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to hash password", err)
	}

	user := &schema.User{
		ID:           utils.GenerateID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.NewInternalError("failed to create user", err)
	}

	log.Printf("✅ Registered user %s (%s)", user.ID, user.Email)
	return s.issueToken(user)
}

// Login authenticates a user by email and password. Invalid email and wrong
// password produce the same error so the endpoint doesn't leak which emails
// exist.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query user", err)
	}
	if user == nil || !auth.VerifyPassword(password, user.PasswordHash) {
		return nil, apperrors.NewUnauthorizedError("invalid email or password")
	}

	return s.issueToken(user)
}

func (s *AuthService) issueToken(user *schema.User) (*AuthResult, error) {
	token, err := auth.GenerateToken(auth.UserSession{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
	})
	if err != nil {
		return nil, apperrors.NewInternalError("failed to sign session token", err)
	}
	return &AuthResult{Token: token, User: user}, nil
}
