package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/event-scheduler/internal/persistence"
)

const userColumns = `
	u.id, u.name, COALESCE(u.email, ''), COALESCE(u.mobile, ''), COALESCE(u.password_hash, ''),
	COALESCE(u.role_id, ''), COALESCE(r.name, ''), COALESCE(r.description, ''),
	u.created_at, u.updated_at
FROM users u
LEFT JOIN roles r ON r.id = u.role_id`

// UserRepository implements persistence.UserRepository using SQLite
type UserRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

var _ persistence.UserRepository = (*UserRepository)(nil)

// NewUserRepository creates a new SQLite user repository
func NewUserRepository(q Queryer) *UserRepository {
	return &UserRepository{
		helper: NewQueryHelper(q),
		mapper: NewErrorMapper(),
	}
}

// CreateUser inserts a new user. Empty email or mobile are stored as NULL.
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) error {
	if err := validateUser(user); err != nil {
		return err
	}

	_, err := r.helper.Exec(ctx, `
		INSERT INTO users (id, name, email, mobile, password_hash, role_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		nullableString(normalizeEmail(user.Email)),
		nullableString(user.Mobile),
		nullableString(user.PasswordHash),
		nullableString(user.RoleID),
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
	)
	return err
}

// UpdateUser overwrites every mutable column of an existing user.
func (r *UserRepository) UpdateUser(ctx context.Context, user persistence.User) error {
	if err := validateUser(user); err != nil {
		return err
	}

	result, err := r.helper.Exec(ctx, `
		UPDATE users
		SET name = ?, email = ?, mobile = ?, password_hash = ?, role_id = ?, updated_at = ?
		WHERE id = ?`,
		user.Name,
		nullableString(normalizeEmail(user.Email)),
		nullableString(user.Mobile),
		nullableString(user.PasswordHash),
		nullableString(user.RoleID),
		formatTime(user.UpdatedAt),
		user.ID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return r.mapper.MapError(err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetUser retrieves a user by ID
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	return r.getOne(ctx, "u.id = ?", id)
}

// GetUserByEmail matches case-insensitively.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	return r.getOne(ctx, "u.email = ?", email)
}

// GetUserByMobile matches the stored number exactly.
func (r *UserRepository) GetUserByMobile(ctx context.Context, mobile string) (persistence.User, error) {
	mobile = strings.TrimSpace(mobile)
	if mobile == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	return r.getOne(ctx, "u.mobile = ?", mobile)
}

// GetUsers returns the users that exist among ids, in no particular order.
func (r *UserRepository) GetUsers(ctx context.Context, ids []string) ([]persistence.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.list(ctx, "WHERE u.id IN ("+placeholders(len(ids))+")", stringArgs(ids)...)
}

// ListUsers returns every user ordered by name.
func (r *UserRepository) ListUsers(ctx context.Context) ([]persistence.User, error) {
	return r.list(ctx, "")
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg any) (persistence.User, error) {
	users, err := r.list(ctx, "WHERE "+where, arg)
	if err != nil {
		return persistence.User{}, err
	}
	if len(users) == 0 {
		return persistence.User{}, persistence.ErrNotFound
	}
	return users[0], nil
}

func (r *UserRepository) list(ctx context.Context, where string, args ...any) ([]persistence.User, error) {
	rows, err := r.helper.Query(ctx, "SELECT "+userColumns+" "+where+" ORDER BY u.name, u.id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []persistence.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	rows.Close()

	if err := attachPermissions(ctx, r.helper, users); err != nil {
		return nil, err
	}
	return users, nil
}

func scanUser(rows *sql.Rows) (persistence.User, error) {
	var (
		user                      persistence.User
		roleName, roleDescription string
		createdAt, updatedAt      string
	)
	if err := rows.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Mobile,
		&user.PasswordHash,
		&user.RoleID,
		&roleName,
		&roleDescription,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.User{}, fmt.Errorf("failed to scan user: %w", err)
	}

	var err error
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.User{}, err
	}
	if user.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.User{}, err
	}
	if user.RoleID != "" {
		user.Role = &persistence.Role{ID: user.RoleID, Name: roleName, Description: roleDescription}
	}
	return user, nil
}

// attachPermissions loads permission keys for every distinct role in users.
func attachPermissions(ctx context.Context, helper *QueryHelper, users []persistence.User) error {
	var roleIDs []string
	seen := make(map[string]bool)
	for _, u := range users {
		if u.Role != nil && !seen[u.Role.ID] {
			seen[u.Role.ID] = true
			roleIDs = append(roleIDs, u.Role.ID)
		}
	}
	permissions, err := loadPermissions(ctx, helper, roleIDs)
	if err != nil {
		return err
	}
	for i := range users {
		if users[i].Role != nil {
			users[i].Role.Permissions = permissions[users[i].Role.ID]
		}
	}
	return nil
}

func validateUser(user persistence.User) error {
	if strings.TrimSpace(user.ID) == "" || strings.TrimSpace(user.Name) == "" {
		return persistence.ErrConstraintViolation
	}
	if strings.TrimSpace(user.Email) == "" && strings.TrimSpace(user.Mobile) == "" {
		return persistence.ErrConstraintViolation
	}
	if user.CreatedAt.IsZero() || user.UpdatedAt.IsZero() {
		return fmt.Errorf("%w: timestamps are required", persistence.ErrConstraintViolation)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
