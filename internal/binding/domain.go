package binding

import "sort"

// PermissionSet holds granted permission IDs for a role.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from a list of permission IDs.
func NewPermissionSet(ids ...string) PermissionSet {
	set := make(PermissionSet, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}

// Clone returns an independent copy of the set.
func (s PermissionSet) Clone() PermissionSet {
	clone := make(PermissionSet, len(s))
	for id := range s {
		clone[id] = struct{}{}
	}
	return clone
}

// Add inserts a permission ID. Inserting a present ID is a no-op.
func (s PermissionSet) Add(id string) {
	if id != "" {
		s[id] = struct{}{}
	}
}

// Remove deletes a permission ID. Removing an absent ID is a no-op.
func (s PermissionSet) Remove(id string) {
	delete(s, id)
}

// Has reports whether the permission ID is in the set.
func (s PermissionSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Values returns the permission IDs in sorted order.
func (s PermissionSet) Values() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Equal reports whether both sets contain the same IDs.
func (s PermissionSet) Equal(other PermissionSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if !other.Has(id) {
			return false
		}
	}
	return true
}

// RolePermissions is the persisted binding of a role to its granted permissions.
type RolePermissions struct {
	RoleID   int64
	RoleName string
	Granted  PermissionSet
}
