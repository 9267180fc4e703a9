package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/event-scheduler/internal/persistence"
)

// RoleRepository implements persistence.RoleRepository using SQLite
type RoleRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

var _ persistence.RoleRepository = (*RoleRepository)(nil)

// NewRoleRepository creates a new SQLite role repository
func NewRoleRepository(q Queryer) *RoleRepository {
	return &RoleRepository{helper: NewQueryHelper(q), mapper: NewErrorMapper()}
}

// GetRoleByName returns the role with its permission keys.
func (r *RoleRepository) GetRoleByName(ctx context.Context, name string) (persistence.Role, error) {
	var (
		role        persistence.Role
		description sql.NullString
	)
	err := r.helper.QueryRow(ctx, `SELECT id, name, description FROM roles WHERE name = ?`, name).
		Scan(&role.ID, &role.Name, &description)
	if err != nil {
		return persistence.Role{}, r.mapper.MapError(err)
	}
	role.Description = description.String

	permissions, err := loadPermissions(ctx, r.helper, []string{role.ID})
	if err != nil {
		return persistence.Role{}, err
	}
	role.Permissions = permissions[role.ID]
	return role, nil
}

// ListRoles returns every role ordered by name.
func (r *RoleRepository) ListRoles(ctx context.Context) ([]persistence.Role, error) {
	rows, err := r.helper.Query(ctx, `SELECT id, name, description FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		roles []persistence.Role
		ids   []string
	)
	for rows.Next() {
		var (
			role        persistence.Role
			description sql.NullString
		)
		if err := rows.Scan(&role.ID, &role.Name, &description); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		role.Description = description.String
		roles = append(roles, role)
		ids = append(ids, role.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	rows.Close()

	permissions, err := loadPermissions(ctx, r.helper, ids)
	if err != nil {
		return nil, err
	}
	for i := range roles {
		roles[i].Permissions = permissions[roles[i].ID]
	}
	return roles, nil
}

// loadPermissions maps role ID to its sorted permission keys.
func loadPermissions(ctx context.Context, helper *QueryHelper, roleIDs []string) (map[string][]string, error) {
	result := make(map[string][]string, len(roleIDs))
	if len(roleIDs) == 0 {
		return result, nil
	}

	rows, err := helper.Query(ctx, `
		SELECT rp.role_id, p.permission_key
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id IN (`+placeholders(len(roleIDs))+`)
		ORDER BY rp.role_id, p.permission_key`,
		stringArgs(roleIDs)...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var roleID, key string
		if err := rows.Scan(&roleID, &key); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		result[roleID] = append(result[roleID], key)
	}
	if err := rows.Err(); err != nil {
		return nil, NewErrorMapper().MapError(err)
	}
	return result, nil
}
