package http

import (
	"context"
	"net/http"

	"github.com/gurmukh6912/token-entry/internal/domain"
)

// RoleManager is one component's access control.
type RoleManager interface {
	HasRole(ctx context.Context, role domain.Role, account domain.Account) (bool, error)
	Grant(ctx context.Context, caller domain.Account, role domain.Role, account domain.Account) error
	Revoke(ctx context.Context, caller domain.Account, role domain.Role, account domain.Account) error
	TransferAdmin(ctx context.Context, caller, next domain.Account) error
}

// RoleManagers maps each scope to its access control.
type RoleManagers map[domain.Scope]RoleManager

func (m RoleManagers) lookup(w http.ResponseWriter, r *http.Request) (RoleManager, bool) {
	scope, err := domain.ParseScope(r.PathValue("scope"))
	if err != nil {
		writeServiceError(w, r, err)
		return nil, false
	}
	mgr, ok := m[scope]
	if !ok {
		writeServiceError(w, r, domain.ErrUnknownScope)
		return nil, false
	}
	return mgr, true
}

type roleTarget struct {
	mgr     RoleManager
	role    domain.Role
	account domain.Account
}

func parseRoleTarget(w http.ResponseWriter, r *http.Request, m RoleManagers) (roleTarget, bool) {
	mgr, ok := m.lookup(w, r)
	if !ok {
		return roleTarget{}, false
	}
	role, err := domain.ParseRole(r.PathValue("role"))
	if err != nil {
		writeServiceError(w, r, err)
		return roleTarget{}, false
	}
	account, ok := pathAccount(w, r, "account")
	if !ok {
		return roleTarget{}, false
	}
	return roleTarget{mgr: mgr, role: role, account: account}, true
}

func HandleGetRole(m RoleManagers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, ok := parseRoleTarget(w, r, m)
		if !ok {
			return
		}
		has, err := target.mgr.HasRole(r.Context(), target.role, target.account)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, roleResponse{
			Scope:   r.PathValue("scope"),
			Role:    target.role,
			Account: target.account,
			Member:  has,
		})
	}
}

func HandleGrantRole(m RoleManagers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, ok := parseRoleTarget(w, r, m)
		if !ok {
			return
		}
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}
		if err := target.mgr.Grant(r.Context(), caller, target.role, target.account); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func HandleRevokeRole(m RoleManagers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, ok := parseRoleTarget(w, r, m)
		if !ok {
			return
		}
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}
		if err := target.mgr.Revoke(r.Context(), caller, target.role, target.account); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleTransferAdmin hands the caller's admin role in a scope to another account.
func HandleTransferAdmin(m RoleManagers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mgr, ok := m.lookup(w, r)
		if !ok {
			return
		}
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}
		var req transferAdminRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		next, err := domain.ParseAccount(req.To)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if err := mgr.TransferAdmin(r.Context(), caller, next); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type transferAdminRequest struct {
	To string `json:"to"`
}

type roleResponse struct {
	Scope   string         `json:"scope"`
	Role    domain.Role    `json:"role"`
	Account domain.Account `json:"account"`
	Member  bool           `json:"member"`
}
