package permissions

// Permission represents an atomic grantable capability.
type Permission struct {
	ID          string
	Name        string
	Description string
}

// Group bundles permissions for display in the console.
type Group struct {
	ID          string
	Name        string
	Permissions []Permission
}
