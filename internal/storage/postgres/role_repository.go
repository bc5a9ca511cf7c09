package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gurmukh6912/token-entry/internal/domain"
)

type RoleRepository struct {
	db
}

func NewRoleRepository(pool *pgxpool.Pool) *RoleRepository {
	return &RoleRepository{db: db{pool: pool}}
}

func (r *RoleRepository) HasRole(ctx context.Context, scope domain.Scope, role domain.Role, account domain.Account) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM role_members WHERE scope = $1 AND role = $2 AND account = $3)`
	var ok bool
	if err := r.queryRow(ctx, query, scope, role, account).Scan(&ok); err != nil {
		return false, fmt.Errorf("has role: %w", err)
	}
	return ok, nil
}

func (r *RoleRepository) AddRoleMember(ctx context.Context, scope domain.Scope, role domain.Role, account domain.Account) error {
	const stmt = `INSERT INTO role_members (scope, role, account) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`
	if _, err := r.exec(ctx, stmt, scope, role, account); err != nil {
		return fmt.Errorf("add role member: %w", err)
	}
	return nil
}

func (r *RoleRepository) RemoveRoleMember(ctx context.Context, scope domain.Scope, role domain.Role, account domain.Account) error {
	const stmt = `DELETE FROM role_members WHERE scope = $1 AND role = $2 AND account = $3`
	if _, err := r.exec(ctx, stmt, scope, role, account); err != nil {
		return fmt.Errorf("remove role member: %w", err)
	}
	return nil
}

// CountRoleMembers locks the counted rows inside a transaction so two admins
// cannot revoke each other concurrently.
func (r *RoleRepository) CountRoleMembers(ctx context.Context, scope domain.Scope, role domain.Role) (int, error) {
	query := `SELECT COUNT(*) FROM (SELECT 1 FROM role_members WHERE scope = $1 AND role = $2` +
		lockClause(ctx, "FOR UPDATE") + `) m`
	var n int
	if err := r.queryRow(ctx, query, scope, role).Scan(&n); err != nil {
		return 0, fmt.Errorf("count role members: %w", err)
	}
	return n, nil
}
