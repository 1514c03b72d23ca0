package core

import "fmt"

// GroupKind distinguishes the membership kinds this module derives and
// reconciles. Directories may hold other kinds; those are never touched.
type GroupKind string

const (
	GroupKindRole       GroupKind = "role"
	GroupKindDepartment GroupKind = "department"
)

// Group is a derived group. Groups are computed from a principal's current
// role and department, never stored by this module.
type Group struct {
	Key         string
	Kind        GroupKind
	DisplayName string
}

// RoleGroup returns the role group for the given role, e.g. ROLE_MANAGER.
func RoleGroup(r Role) Group {
	return Group{
		Key:         fmt.Sprintf("ROLE_%s", r),
		Kind:        GroupKindRole,
		DisplayName: fmt.Sprintf("Role %s", r),
	}
}

// DepartmentGroup returns the department group for the given department id,
// e.g. DEPT_7.
func DepartmentGroup(departmentID string) Group {
	return Group{
		Key:         fmt.Sprintf("DEPT_%s", departmentID),
		Kind:        GroupKindDepartment,
		DisplayName: fmt.Sprintf("Department %s", departmentID),
	}
}

// DerivedGroups computes the groups a principal belongs to: exactly one role
// group and, if the principal has a department, one department group.
func DerivedGroups(p *Principal) []Group {
	groups := []Group{RoleGroup(p.Role)}

	if p.DepartmentID != "" {
		groups = append(groups, DepartmentGroup(p.DepartmentID))
	}

	return groups
}
