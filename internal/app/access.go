package app

import (
	"context"
	"slices"

	"github.com/gurmukh6912/token-entry/internal/clock"
	"github.com/gurmukh6912/token-entry/internal/domain"
)

type RoleRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	HasRole(ctx context.Context, scope domain.Scope, role domain.Role, account domain.Account) (bool, error)
	AddRoleMember(ctx context.Context, scope domain.Scope, role domain.Role, account domain.Account) error
	RemoveRoleMember(ctx context.Context, scope domain.Scope, role domain.Role, account domain.Account) error
	CountRoleMembers(ctx context.Context, scope domain.Scope, role domain.Role) (int, error)
}

// scopeRoles lists the roles each component understands.
var scopeRoles = map[domain.Scope][]domain.Role{
	domain.ScopeRegistry: {domain.RoleAdmin, domain.RoleEventManager, domain.RoleValidator},
	domain.ScopeMarket:   {domain.RoleAdmin},
}

// AccessControl holds the capability sets of one component.
type AccessControl struct {
	scope domain.Scope
	repo  RoleRepository
	exec  *executor
}

func NewAccessControl(scope domain.Scope, repo RoleRepository, clk clock.Clock, opts ...Option) *AccessControl {
	return &AccessControl{
		scope: scope,
		repo:  repo,
		exec:  newExecutor(domain.Account(scope), repo, nil, clk, buildOptions(opts)),
	}
}

func (a *AccessControl) Scope() domain.Scope {
	return a.scope
}

// Require fails with ErrUnauthorized unless account holds role.
func (a *AccessControl) Require(ctx context.Context, account domain.Account, role domain.Role) error {
	ok, err := a.HasRole(ctx, role, account)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrUnauthorized
	}
	return nil
}

func (a *AccessControl) HasRole(ctx context.Context, role domain.Role, account domain.Account) (bool, error) {
	if account == "" {
		return false, nil
	}
	return a.repo.HasRole(ctx, a.scope, role, account)
}

// Bootstrap grants admin plus extra roles to the deployer when the scope has
// no admin yet. It is a no-op afterwards.
func (a *AccessControl) Bootstrap(ctx context.Context, deployer domain.Account, extra ...domain.Role) error {
	return a.exec.run(ctx, "access.Bootstrap", func(ctx context.Context) (*transition, error) {
		if deployer == "" {
			return nil, domain.ErrInvalidAccount
		}
		roles := append([]domain.Role{domain.RoleAdmin}, extra...)
		for _, role := range roles {
			if err := a.checkRole(role); err != nil {
				return nil, err
			}
		}
		admins, err := a.repo.CountRoleMembers(ctx, a.scope, domain.RoleAdmin)
		if err != nil {
			return nil, err
		}
		if admins > 0 {
			return nil, nil
		}

		t := &transition{}
		t.apply = func(ctx context.Context) error {
			for _, role := range roles {
				if err := a.repo.AddRoleMember(ctx, a.scope, role, deployer); err != nil {
					return err
				}
			}
			return nil
		}
		for _, role := range roles {
			t.notify(domain.Notification{Kind: domain.KindRoleGranted, Role: role, Account: deployer, Counterparty: deployer})
		}
		return t, nil
	})
}

// Grant adds account to role. Admin only.
func (a *AccessControl) Grant(ctx context.Context, caller domain.Account, role domain.Role, account domain.Account) error {
	return a.exec.run(ctx, "access.Grant", func(ctx context.Context) (*transition, error) {
		if err := a.Require(ctx, caller, domain.RoleAdmin); err != nil {
			return nil, err
		}
		if err := a.checkRole(role); err != nil {
			return nil, err
		}
		if account == "" {
			return nil, domain.ErrInvalidAccount
		}
		has, err := a.repo.HasRole(ctx, a.scope, role, account)
		if err != nil {
			return nil, err
		}
		if has {
			return nil, nil
		}

		t := &transition{apply: func(ctx context.Context) error {
			return a.repo.AddRoleMember(ctx, a.scope, role, account)
		}}
		t.notify(domain.Notification{Kind: domain.KindRoleGranted, Role: role, Account: account, Counterparty: caller})
		return t, nil
	})
}

// Revoke removes account from role. Admin only; the last admin cannot be removed.
func (a *AccessControl) Revoke(ctx context.Context, caller domain.Account, role domain.Role, account domain.Account) error {
	return a.exec.run(ctx, "access.Revoke", func(ctx context.Context) (*transition, error) {
		if err := a.Require(ctx, caller, domain.RoleAdmin); err != nil {
			return nil, err
		}
		if err := a.checkRole(role); err != nil {
			return nil, err
		}
		has, err := a.repo.HasRole(ctx, a.scope, role, account)
		if err != nil {
			return nil, err
		}
		if !has {
			return nil, nil
		}
		if role == domain.RoleAdmin {
			if err := a.ensureAnotherAdmin(ctx); err != nil {
				return nil, err
			}
		}

		t := &transition{apply: func(ctx context.Context) error {
			return a.repo.RemoveRoleMember(ctx, a.scope, role, account)
		}}
		t.notify(domain.Notification{Kind: domain.KindRoleRevoked, Role: role, Account: account, Counterparty: caller})
		return t, nil
	})
}

// TransferAdmin hands the caller's admin role to next.
func (a *AccessControl) TransferAdmin(ctx context.Context, caller, next domain.Account) error {
	return a.exec.run(ctx, "access.TransferAdmin", func(ctx context.Context) (*transition, error) {
		if err := a.Require(ctx, caller, domain.RoleAdmin); err != nil {
			return nil, err
		}
		if next == "" {
			return nil, domain.ErrInvalidAccount
		}
		if next == caller {
			return nil, nil
		}
		has, err := a.repo.HasRole(ctx, a.scope, domain.RoleAdmin, next)
		if err != nil {
			return nil, err
		}

		t := &transition{apply: func(ctx context.Context) error {
			if !has {
				if err := a.repo.AddRoleMember(ctx, a.scope, domain.RoleAdmin, next); err != nil {
					return err
				}
			}
			return a.repo.RemoveRoleMember(ctx, a.scope, domain.RoleAdmin, caller)
		}}
		if !has {
			t.notify(domain.Notification{Kind: domain.KindRoleGranted, Role: domain.RoleAdmin, Account: next, Counterparty: caller})
		}
		t.notify(domain.Notification{Kind: domain.KindRoleRevoked, Role: domain.RoleAdmin, Account: caller, Counterparty: caller})
		return t, nil
	})
}

func (a *AccessControl) checkRole(role domain.Role) error {
	if !slices.Contains(scopeRoles[a.scope], role) {
		return domain.ErrUnknownRole
	}
	return nil
}

func (a *AccessControl) ensureAnotherAdmin(ctx context.Context) error {
	n, err := a.repo.CountRoleMembers(ctx, a.scope, domain.RoleAdmin)
	if err != nil {
		return err
	}
	if n <= 1 {
		return domain.ErrLastAdmin
	}
	return nil
}
