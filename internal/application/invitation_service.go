package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/example/event-scheduler/internal/access"
	"github.com/example/event-scheduler/internal/claims"
)

const (
	reasonAdminsInviteUsersOnly = "Admins can only invite normal users"

	defaultInviteTTL = 24 * time.Hour
)

// InvitationSettings controls the invitation claims and links.
type InvitationSettings struct {
	TTL     time.Duration
	LinkURL string
}

// InvitationService issues invitations and completes registrations.
type InvitationService struct {
	store       Transactor
	hasher      PasswordHasher
	issuer      ClaimsIssuer
	notifier    Notifier
	idGenerator func() string
	now         func() time.Time
	settings    InvitationSettings
	logger      *slog.Logger
}

// NewInvitationService wires dependencies for invitation and registration flows.
func NewInvitationService(store Transactor, hasher PasswordHasher, issuer ClaimsIssuer, notifier Notifier, idGenerator func() string, now func() time.Time, settings InvitationSettings) *InvitationService {
	return NewInvitationServiceWithLogger(store, hasher, issuer, notifier, idGenerator, now, settings, nil)
}

// NewInvitationServiceWithLogger wires dependencies with a specified logger.
func NewInvitationServiceWithLogger(store Transactor, hasher PasswordHasher, issuer ClaimsIssuer, notifier Notifier, idGenerator func() string, now func() time.Time, settings InvitationSettings, logger *slog.Logger) *InvitationService {
	if hasher == nil {
		hasher = NewArgon2idHasher()
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if settings.TTL <= 0 {
		settings.TTL = defaultInviteTTL
	}
	return &InvitationService{
		store:       store,
		hasher:      hasher,
		issuer:      issuer,
		notifier:    notifier,
		idGenerator: idGenerator,
		now:         now,
		settings:    settings,
		logger:      defaultLogger(logger),
	}
}

func (s *InvitationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "InvitationService", operation, attrs...)
}

// Invite assigns the target role to the email, creating a placeholder account
// when none exists, and returns the signed invitation.
func (s *InvitationService) Invite(ctx context.Context, params InviteParams) (result InviteResult, err error) {
	if s == nil {
		err = fmt.Errorf("InvitationService is nil")
		return
	}
	if s.store == nil || s.issuer == nil {
		err = fmt.Errorf("invitation service not configured")
		return
	}

	email := normalizeEmail(params.Email)
	roleName := strings.TrimSpace(params.Role)

	logger := s.loggerWith(ctx, "Invite",
		"principal_id", params.Principal.UserID,
		"role", roleName,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "invitation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", result.User.ID).InfoContext(ctx, "invitation issued")
	}()

	vErr := &ValidationError{}
	if email == "" {
		vErr.add("email", "email is required")
	} else if !validEmail(email) {
		vErr.add("email", "email must be a valid address")
	}
	if roleName == "" {
		vErr.add("role", "role is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	err = s.store.WithinTransaction(ctx, func(ctx context.Context, repos Repositories) error {
		inviter, err := repos.Users.GetUser(ctx, params.Principal.UserID)
		if err != nil {
			return err
		}
		if decision := access.Authorize(inviter.Subject(), access.ActionInviteUser); !decision.Allowed {
			return forbidden(decision.Reason)
		}
		if inviter.RoleName() == access.RoleAdmin && roleName != access.RoleUser {
			return forbidden(reasonAdminsInviteUsersOnly)
		}

		role, err := repos.Roles.GetRoleByName(ctx, roleName)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return validationFailure("role", "role does not exist")
			}
			return err
		}

		now := s.now().UTC()
		invitee, err := repos.Users.GetUserByEmail(ctx, email)
		switch {
		case err == nil:
			invitee.Role = &role
			invitee.UpdatedAt = now
			invitee, err = repos.Users.UpdateUser(ctx, invitee)
		case errors.Is(err, ErrNotFound):
			invitee, err = repos.Users.CreateUser(ctx, User{
				ID:        s.idGenerator(),
				Name:      emailLocalPart(email),
				Email:     email,
				Role:      &role,
				CreatedAt: now,
				UpdatedAt: now,
			})
		}
		if err != nil {
			return err
		}

		token, err := s.issuer.Issue(claims.Claims{
			Subject: email,
			Role:    role.Name,
			Purpose: claims.PurposeInvite,
		}, s.settings.TTL)
		if err != nil {
			return err
		}

		result = InviteResult{
			User:  invitee,
			Token: token,
			Link:  inviteLink(s.settings.LinkURL, token),
		}
		return nil
	})
	if err != nil {
		result = InviteResult{}
		return
	}

	if s.notifier != nil {
		if nErr := s.notifier.SendInvite(ctx, email, result.Link); nErr != nil {
			logger.WarnContext(ctx, "invitation email not delivered", "error", nErr)
		}
	}
	return
}

// Register activates an invited account when params.Token is set, otherwise
// it creates a self-registered account with role user.
func (s *InvitationService) Register(ctx context.Context, params RegisterParams) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("InvitationService is nil")
		return
	}
	if s.store == nil {
		err = fmt.Errorf("invitation service not configured")
		return
	}

	token := strings.TrimSpace(params.Token)
	logger := s.loggerWith(ctx, "Register", "invited", token != "")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "registration failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID, "role", user.RoleName()).InfoContext(ctx, "user registered")
	}()

	if token != "" {
		user, err = s.redeem(ctx, token, params)
	} else {
		user, err = s.signUp(ctx, params)
	}
	if err != nil {
		user = User{}
	}
	return
}

func (s *InvitationService) redeem(ctx context.Context, token string, params RegisterParams) (User, error) {
	if s.issuer == nil {
		return User{}, fmt.Errorf("claims issuer not configured")
	}

	invite, err := s.issuer.Verify(token, claims.PurposeInvite)
	if err != nil {
		if errors.Is(err, claims.ErrExpired) {
			return User{}, ErrExpiredClaim
		}
		return User{}, ErrInvalidClaim
	}

	name := strings.TrimSpace(params.Name)
	mobile := strings.TrimSpace(params.Mobile)
	if params.Password == "" {
		return User{}, validationFailure("password", "password is required")
	}
	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return User{}, err
	}

	var activated User
	err = s.store.WithinTransaction(ctx, func(ctx context.Context, repos Repositories) error {
		placeholder, err := repos.Users.GetUserByEmail(ctx, normalizeEmail(invite.Subject))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrInvalidClaim
			}
			return err
		}
		if placeholder.Activated() {
			return ErrAlreadyActivated
		}

		role, err := repos.Roles.GetRoleByName(ctx, invite.Role)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrInvalidClaim
			}
			return err
		}

		if mobile != "" && mobile != placeholder.Mobile {
			if err := ensureUnclaimed(ctx, repos.Users.GetUserByMobile, mobile, "mobile"); err != nil {
				return err
			}
			placeholder.Mobile = mobile
		}
		if name != "" {
			placeholder.Name = name
		}
		placeholder.PasswordHash = hash
		placeholder.Role = &role
		placeholder.UpdatedAt = s.now().UTC()

		updated, err := repos.Users.UpdateUser(ctx, placeholder)
		if err != nil {
			return err
		}
		activated = updated
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return activated, nil
}

func (s *InvitationService) signUp(ctx context.Context, params RegisterParams) (User, error) {
	name := strings.TrimSpace(params.Name)
	email := normalizeEmail(params.Email)
	mobile := strings.TrimSpace(params.Mobile)

	vErr := &ValidationError{}
	if name == "" {
		vErr.add("name", "name is required")
	}
	if email == "" && mobile == "" {
		vErr.add("email", "email or mobile is required")
	}
	if email != "" && !validEmail(email) {
		vErr.add("email", "email must be a valid address")
	}
	if params.Password == "" {
		vErr.add("password", "password is required")
	}
	if vErr.HasErrors() {
		return User{}, vErr
	}

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return User{}, err
	}

	var created User
	err = s.store.WithinTransaction(ctx, func(ctx context.Context, repos Repositories) error {
		if email != "" {
			if err := ensureUnclaimed(ctx, repos.Users.GetUserByEmail, email, "email"); err != nil {
				return err
			}
		}
		if mobile != "" {
			if err := ensureUnclaimed(ctx, repos.Users.GetUserByMobile, mobile, "mobile"); err != nil {
				return err
			}
		}

		role, err := repos.Roles.GetRoleByName(ctx, access.RoleUser)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		persisted, err := repos.Users.CreateUser(ctx, User{
			ID:           s.idGenerator(),
			Name:         name,
			Email:        email,
			Mobile:       mobile,
			PasswordHash: hash,
			Role:         &role,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			return err
		}
		created = persisted
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return created, nil
}

// EnsureSuperAdmin creates an activated super_admin account for email unless
// one with that email already exists. Existing accounts are left untouched.
func (s *InvitationService) EnsureSuperAdmin(ctx context.Context, email, password string) (user User, created bool, err error) {
	if s == nil || s.store == nil {
		err = fmt.Errorf("invitation service not configured")
		return
	}

	email = normalizeEmail(email)
	logger := s.loggerWith(ctx, "EnsureSuperAdmin", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "bootstrap failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		if created {
			logger.With("user_id", user.ID).InfoContext(ctx, "super admin bootstrapped")
		}
	}()

	if !validEmail(email) {
		err = validationFailure("email", "email must be a valid address")
		return
	}
	if password == "" {
		err = validationFailure("password", "password is required")
		return
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return
	}

	err = s.store.WithinTransaction(ctx, func(ctx context.Context, repos Repositories) error {
		existing, err := repos.Users.GetUserByEmail(ctx, email)
		switch {
		case err == nil:
			user, created = existing, false
			return nil
		case !errors.Is(err, ErrNotFound):
			return err
		}

		role, err := repos.Roles.GetRoleByName(ctx, access.RoleSuperAdmin)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		persisted, err := repos.Users.CreateUser(ctx, User{
			ID:           s.idGenerator(),
			Name:         emailLocalPart(email),
			Email:        email,
			PasswordHash: hash,
			Role:         &role,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			return err
		}
		user, created = persisted, true
		return nil
	})
	if err != nil {
		user, created = User{}, false
	}
	return
}

func ensureUnclaimed(ctx context.Context, lookup func(context.Context, string) (User, error), value, field string) error {
	_, err := lookup(ctx, value)
	switch {
	case err == nil:
		return &DuplicateError{Field: field}
	case errors.Is(err, ErrNotFound):
		return nil
	default:
		return err
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func emailLocalPart(email string) string {
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}

func inviteLink(base, token string) string {
	if base == "" {
		return ""
	}
	u, err := url.Parse(base)
	if err != nil {
		return base + "?token=" + url.QueryEscape(token)
	}
	query := u.Query()
	query.Set("token", token)
	u.RawQuery = query.Encode()
	return u.String()
}
