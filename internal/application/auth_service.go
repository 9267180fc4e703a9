package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/event-scheduler/internal/claims"
)

const defaultSessionTTL = time.Hour

// AuthService coordinates login and session validation. Sessions are signed
// claims, so validation never touches storage.
type AuthService struct {
	store      Transactor
	hasher     PasswordHasher
	issuer     ClaimsIssuer
	now        func() time.Time
	sessionTTL time.Duration
	logger     *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(store Transactor, hasher PasswordHasher, issuer ClaimsIssuer, now func() time.Time, sessionTTL time.Duration) *AuthService {
	return NewAuthServiceWithLogger(store, hasher, issuer, now, sessionTTL, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
func NewAuthServiceWithLogger(store Transactor, hasher PasswordHasher, issuer ClaimsIssuer, now func() time.Time, sessionTTL time.Duration, logger *slog.Logger) *AuthService {
	if hasher == nil {
		hasher = NewArgon2idHasher()
	}
	if now == nil {
		now = time.Now
	}
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}
	return &AuthService{
		store:      store,
		hasher:     hasher,
		issuer:     issuer,
		now:        now,
		sessionTTL: sessionTTL,
		logger:     defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// Authenticate validates credentials and issues a session token. Identifiers
// containing "@" are treated as email addresses, anything else as a mobile
// number. Every failure collapses to ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.store == nil || s.issuer == nil {
		err = fmt.Errorf("auth service not configured")
		return
	}

	identifier := strings.TrimSpace(params.Identifier)
	byEmail := strings.Contains(identifier, "@")
	if byEmail {
		identifier = normalizeEmail(identifier)
	}

	logger := s.loggerWith(ctx, "Authenticate", "by_email", byEmail)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "authentication failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", result.User.ID).InfoContext(ctx, "authentication succeeded")
	}()

	if identifier == "" || params.Password == "" {
		err = ErrInvalidCredentials
		return
	}

	var user User
	err = s.store.WithinTransaction(ctx, func(ctx context.Context, repos Repositories) error {
		var lookupErr error
		if byEmail {
			user, lookupErr = repos.Users.GetUserByEmail(ctx, identifier)
		} else {
			user, lookupErr = repos.Users.GetUserByMobile(ctx, identifier)
		}
		return lookupErr
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = ErrInvalidCredentials
		}
		return
	}

	if !user.Activated() || !s.hasher.Verify(params.Password, user.PasswordHash) {
		err = ErrInvalidCredentials
		return
	}

	var token string
	token, err = s.issuer.Issue(claims.Claims{
		Subject: user.ID,
		Role:    user.RoleName(),
		Purpose: claims.PurposeSession,
	}, s.sessionTTL)
	if err != nil {
		return
	}

	result = AuthenticateResult{
		User:      user,
		Token:     token,
		ExpiresAt: s.now().UTC().Add(s.sessionTTL),
	}
	return
}

// ValidateSession verifies a session token and returns its principal.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (principal Principal, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.issuer == nil {
		err = fmt.Errorf("claims issuer not configured")
		return
	}

	trimmed := strings.TrimSpace(token)
	logger := s.loggerWith(ctx, "ValidateSession", "token_provided", trimmed != "")
	defer func() {
		if err != nil {
			logger.DebugContext(ctx, "session rejected", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	if trimmed == "" {
		err = ErrUnauthenticated
		return
	}

	session, verifyErr := s.issuer.Verify(trimmed, claims.PurposeSession)
	if verifyErr != nil || session.Subject == "" {
		err = ErrUnauthenticated
		return
	}

	principal = Principal{UserID: session.Subject}
	return
}
