// Package users handles accounts and the session lifecycle around them.
package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/maneesh/filesmanager/internal/common"
	"github.com/maneesh/filesmanager/internal/models"
	"github.com/sirupsen/logrus"
)

// Repository persists users
type Repository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUser(ctx context.Context, id models.UserID) (*models.User, error)
}

// Sessions issues and revokes tokens
type Sessions interface {
	Issue(ctx context.Context, userID models.UserID) (string, error)
	Resolve(ctx context.Context, token string) (models.UserID, error)
	Revoke(ctx context.Context, token string) error
}

// Service implements signup, connect, disconnect and self-lookup
type Service struct {
	repo     Repository
	sessions Sessions
	hasher   PasswordHasher
	log      logrus.FieldLogger
}

// NewService creates a Service
func NewService(repo Repository, sessions Sessions, hasher PasswordHasher, log logrus.FieldLogger) *Service {
	return &Service{repo: repo, sessions: sessions, hasher: hasher, log: log}
}

// SignUp creates a user with a hashed password
func (s *Service) SignUp(ctx context.Context, email, password string) (*models.User, error) {
	if email == "" {
		return nil, common.NewValidationError("Missing email")
	}
	if password == "" {
		return nil, common.NewValidationError("Missing password")
	}

	_, err := s.repo.GetUserByEmail(ctx, email)
	if err == nil {
		return nil, common.ErrAlreadyExists
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{Email: email, HashedPassword: hashed}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.log.WithField("user_id", user.ID).Info("User created")
	return user, nil
}

// Connect verifies credentials and issues a session token
func (s *Service) Connect(ctx context.Context, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", common.ErrUnauthenticated
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if errors.Is(err, common.ErrNotFound) {
		return "", common.ErrUnauthenticated
	} else if err != nil {
		return "", err
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return "", common.ErrUnauthenticated
	}

	return s.sessions.Issue(ctx, user.ID)
}

// Disconnect revokes token; unknown tokens are rejected
func (s *Service) Disconnect(ctx context.Context, token string) error {
	if _, err := s.authenticate(ctx, token); err != nil {
		return err
	}
	return s.sessions.Revoke(ctx, token)
}

// Me returns the user token belongs to
func (s *Service) Me(ctx context.Context, token string) (*models.User, error) {
	userID, err := s.authenticate(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetUser(ctx, userID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.ErrUnauthenticated
	}
	return user, err
}

// authenticate fails closed when the session store is down
func (s *Service) authenticate(ctx context.Context, token string) (models.UserID, error) {
	userID, err := s.sessions.Resolve(ctx, token)
	if err == nil {
		return userID, nil
	}
	if !errors.Is(err, common.ErrUnauthenticated) {
		s.log.WithError(err).Warn("Session lookup failed, denying request")
	}
	return 0, common.ErrUnauthenticated
}
