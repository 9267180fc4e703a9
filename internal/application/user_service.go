package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/event-scheduler/internal/access"
)

// UserService serves profile reads, the user directory and role changes.
type UserService struct {
	store  Transactor
	now    func() time.Time
	logger *slog.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(store Transactor, now func() time.Time) *UserService {
	return NewUserServiceWithLogger(store, now, nil)
}

// NewUserServiceWithLogger wires dependencies for the user service with a specified logger.
func NewUserServiceWithLogger(store Transactor, now func() time.Time, logger *slog.Logger) *UserService {
	if now == nil {
		now = time.Now
	}
	return &UserService{store: store, now: now, logger: defaultLogger(logger)}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

// GetProfile returns the principal's own record.
func (s *UserService) GetProfile(ctx context.Context, principal Principal) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}
	if s.store == nil {
		err = fmt.Errorf("user store not configured")
		return
	}

	err = s.store.WithinTransaction(ctx, func(ctx context.Context, repos Repositories) error {
		found, err := repos.Users.GetUser(ctx, principal.UserID)
		if err != nil {
			return err
		}
		user = found
		return nil
	})
	if err != nil {
		s.loggerWith(ctx, "GetProfile", "principal_id", principal.UserID).
			ErrorContext(ctx, "profile lookup failed", "error", err, "error_kind", ErrorKind(err))
		return User{}, err
	}
	return user, nil
}

// ListOtherUsers returns every user except the principal, sorted by name.
func (s *UserService) ListOtherUsers(ctx context.Context, principal Principal) (users []User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}
	if s.store == nil {
		err = fmt.Errorf("user store not configured")
		return
	}

	logger := s.loggerWith(ctx, "ListOtherUsers", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "user listing failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(users)).InfoContext(ctx, "users listed")
	}()

	err = s.store.WithinTransaction(ctx, func(ctx context.Context, repos Repositories) error {
		all, err := repos.Users.ListUsers(ctx)
		if err != nil {
			return err
		}
		others := make([]User, 0, len(all))
		for _, user := range all {
			if user.ID == principal.UserID {
				continue
			}
			others = append(others, user)
		}
		users = others
		return nil
	})
	if err != nil {
		users = nil
		return
	}

	sort.SliceStable(users, func(i, j int) bool {
		left, right := strings.ToLower(users[i].Name), strings.ToLower(users[j].Name)
		if left == right {
			return users[i].ID < users[j].ID
		}
		return left < right
	})
	return
}

// UpdateUserRole replaces the target user's role. Only principals allowed to
// update permissions may call it.
func (s *UserService) UpdateUserRole(ctx context.Context, params UpdateUserRoleParams) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}
	if s.store == nil {
		err = fmt.Errorf("user store not configured")
		return
	}

	roleName := strings.TrimSpace(params.Role)
	logger := s.loggerWith(ctx, "UpdateUserRole",
		"principal_id", params.Principal.UserID,
		"user_id", params.UserID,
		"role", roleName,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "role update failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "role updated")
	}()

	if roleName == "" {
		err = validationFailure("role", "role is required")
		return
	}

	err = s.store.WithinTransaction(ctx, func(ctx context.Context, repos Repositories) error {
		actor, err := repos.Users.GetUser(ctx, params.Principal.UserID)
		if err != nil {
			return err
		}
		if decision := access.Authorize(actor.Subject(), access.ActionUpdatePermissions); !decision.Allowed {
			return forbidden(decision.Reason)
		}

		target, err := repos.Users.GetUser(ctx, params.UserID)
		if err != nil {
			return err
		}

		role, err := repos.Roles.GetRoleByName(ctx, roleName)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return validationFailure("role", "role does not exist")
			}
			return err
		}

		target.Role = &role
		target.UpdatedAt = s.now().UTC()
		updated, err := repos.Users.UpdateUser(ctx, target)
		if err != nil {
			return err
		}
		user = updated
		return nil
	})
	if err != nil {
		user = User{}
	}
	return
}
