package memory

import (
	"context"

	"github.com/gurmukh6912/token-entry/internal/domain"
)

func (s *Store) HasRole(ctx context.Context, scope domain.Scope, role domain.Role, account domain.Account) (bool, error) {
	var ok bool
	err := s.do(ctx, func(st *state) error {
		_, ok = st.roles[roleKey{scope: scope, role: role, account: account}]
		return nil
	})
	return ok, err
}

func (s *Store) AddRoleMember(ctx context.Context, scope domain.Scope, role domain.Role, account domain.Account) error {
	return s.do(ctx, func(st *state) error {
		st.roles[roleKey{scope: scope, role: role, account: account}] = struct{}{}
		return nil
	})
}

func (s *Store) RemoveRoleMember(ctx context.Context, scope domain.Scope, role domain.Role, account domain.Account) error {
	return s.do(ctx, func(st *state) error {
		delete(st.roles, roleKey{scope: scope, role: role, account: account})
		return nil
	})
}

func (s *Store) CountRoleMembers(ctx context.Context, scope domain.Scope, role domain.Role) (int, error) {
	var n int
	err := s.do(ctx, func(st *state) error {
		for key := range st.roles {
			if key.scope == scope && key.role == role {
				n++
			}
		}
		return nil
	})
	return n, err
}
