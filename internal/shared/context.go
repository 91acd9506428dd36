package shared

import "context"

// Role enumerates the user roles known to the system.
type Role string

const (
	RoleSuperAdmin     Role = "super_admin"
	RoleKitchenAdmin   Role = "kitchen_admin"
	RoleTransportAdmin Role = "transport_admin"
	RoleBranchAdmin    Role = "branch_admin"
	RoleUser           Role = "user"
)

// IsValid reports whether the role is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleSuperAdmin, RoleKitchenAdmin, RoleTransportAdmin, RoleBranchAdmin, RoleUser:
		return true
	default:
		return false
	}
}

// BranchScoped reports whether callers with this role act on their own branch only.
func (r Role) BranchScoped() bool {
	return r == RoleBranchAdmin || r == RoleUser
}

// Principal is the pre-authorised caller supplied by the auth collaborator.
type Principal struct {
	ID       int64 `json:"id"`
	Role     Role  `json:"role"`
	BranchID int64 `json:"branch_id,omitempty"`
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}

// EffectiveBranch returns the branch the caller acts on. Branch scoped roles
// always get their own branch, whatever was requested.
func (p Principal) EffectiveBranch(requested int64) int64 {
	if p.Role.BranchScoped() {
		return p.BranchID
	}
	return requested
}
