package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/quejas/complaint-service/internal/auth"
	"github.com/quejas/complaint-service/internal/config"
	"github.com/quejas/complaint-service/internal/domain"
	"github.com/quejas/complaint-service/internal/repository"
	apperrors "github.com/quejas/complaint-service/pkg/util/errorutil"
)

const invalidCredentialsMessage = "invalid credentials"

// AuthService is the credential gate: it seeds the administrator and checks logins.
type AuthService struct {
	credentials   repository.CredentialRepository
	passwords     *auth.PasswordVerifier
	adminUsername string
	adminPassword string
	logger        *zap.Logger
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	CredentialRepo repository.CredentialRepository
	Logger         *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		credentials:   deps.CredentialRepo,
		passwords:     auth.NewPasswordVerifier(cfg.BcryptCost),
		adminUsername: cfg.AdminUsername,
		adminPassword: cfg.AdminPassword,
		logger:        logger,
	}
}

// Bootstrap makes sure the administrator credential exists. It reports whether this call created it.
// Losing an insert race to another instance counts as already present.
func (s *AuthService) Bootstrap(ctx context.Context) (bool, error) {
	if s.adminUsername == "" || s.adminPassword == "" {
		return false, errors.New("admin username and password must be configured")
	}

	_, err := s.credentials.GetByUsername(ctx, s.adminUsername)
	if err == nil {
		s.logger.Debug("admin credential already present", zap.String("username", s.adminUsername))
		return false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, apperrors.NewStorageUnavailable(fmt.Errorf("lookup admin credential: %w", err))
	}

	hash, err := s.passwords.Hash(s.adminPassword)
	if err != nil {
		return false, apperrors.NewInternalError(fmt.Errorf("hash admin password: %w", err))
	}

	credential := &domain.Credential{Username: s.adminUsername, PasswordHash: hash}
	if err := s.credentials.Create(ctx, credential); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			s.logger.Info("admin credential created concurrently", zap.String("username", s.adminUsername))
			return false, nil
		}
		return false, apperrors.NewStorageUnavailable(fmt.Errorf("create admin credential: %w", err))
	}

	s.logger.Info("admin credential created", zap.String("username", s.adminUsername))
	return true, nil
}

// Authenticate checks a username/password pair and returns the username on success.
// Unknown users and wrong passwords fail identically.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (string, error) {
	credential, err := s.credentials.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.passwords.Burn(password)
			return "", apperrors.NewUnauthorized(invalidCredentialsMessage)
		}
		return "", apperrors.NewStorageUnavailable(fmt.Errorf("lookup credential: %w", err))
	}

	if err := s.passwords.Verify(credential.PasswordHash, password); err != nil {
		return "", apperrors.NewUnauthorized(invalidCredentialsMessage)
	}
	return credential.Username, nil
}
