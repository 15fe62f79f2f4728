package core

import "sort"

// Scope is what the authenticated administrator is allowed to see.
// Super admins are unrestricted; every other administrator only reaches the groups they administer.
type Scope struct {
	AdministratorID string
	IsSuperAdmin    bool
	GroupIDs        []string
}

// Unrestricted returns a Scope without any group restriction (CLI & internal jobs).
func Unrestricted() Scope {
	return Scope{IsSuperAdmin: true}
}

func (s Scope) CanAccessGroup(groupID string) bool {
	if s.IsSuperAdmin {
		return true
	}
	ids := append([]string(nil), s.GroupIDs...)
	sort.Strings(ids)
	if i := sort.SearchStrings(ids, groupID); i < len(ids) {
		return ids[i] == groupID
	}
	return false
}

// GroupFilter returns the group IDs queries must be restricted to; nil means no restriction.
// A restricted administrator without any group gets an empty (non-nil) slice.
func (s Scope) GroupFilter() []string {
	if s.IsSuperAdmin {
		return nil
	}
	if s.GroupIDs == nil {
		return []string{}
	}
	return s.GroupIDs
}
