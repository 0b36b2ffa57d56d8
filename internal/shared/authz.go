package shared

// Console permissions guarding the RBAC administration surface.
const (
	PermRBACView = "rbac.view"
	PermRBACEdit = "rbac.edit"
)

// AdminScopes lists all permissions consumed by the console itself.
func AdminScopes() []string {
	return []string{
		PermRBACView,
		PermRBACEdit,
	}
}
