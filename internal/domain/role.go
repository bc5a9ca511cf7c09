package domain

// Scope names the component whose role set is being consulted.
type Scope string

const (
	ScopeRegistry Scope = "registry"
	ScopeMarket   Scope = "market"
)

type Role string

const (
	RoleAdmin        Role = "admin"
	RoleEventManager Role = "event_manager"
	RoleValidator    Role = "validator"
)

// ParseRole validates a role name.
func ParseRole(raw string) (Role, error) {
	switch r := Role(raw); r {
	case RoleAdmin, RoleEventManager, RoleValidator:
		return r, nil
	default:
		return "", ErrUnknownRole
	}
}

// ParseScope validates a scope name.
func ParseScope(raw string) (Scope, error) {
	switch s := Scope(raw); s {
	case ScopeRegistry, ScopeMarket:
		return s, nil
	default:
		return "", ErrUnknownScope
	}
}
