package core

// Role is the closed set of roles a CRM principal can hold.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleUser    Role = "USER"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleUser:
		return true
	}

	return false
}

// Principal is a CRM user as seen by this module. Principals are owned by the
// CRM identity subsystem; this module only reads them.
type Principal struct {
	ID string

	Role Role

	// DepartmentID is empty for principals without a department.
	DepartmentID string

	Active bool
}

// Department is a node in the CRM department tree. Parent pointers must form
// a forest; walks over the chain are bounded to tolerate a violated invariant.
type Department struct {
	ID string

	// ParentID is empty for root departments.
	ParentID string

	// ManagerID references the principal managing this department, if any.
	ManagerID string
}

// maxDepartmentDepth bounds parent-chain walks in addition to the visited set.
const maxDepartmentDepth = 128

// DepartmentLookup resolves a department by id. The second return value is
// false when the department does not exist.
type DepartmentLookup func(id string) (Department, bool)

// DepartmentChain returns the chain of department ids from the given
// department up to its root. It returns ErrDepartmentCycle if the parent
// pointers loop.
func DepartmentChain(lookup DepartmentLookup, id string) ([]string, error) {
	var chain []string

	visited := map[string]struct{}{}

	for id != "" && len(chain) < maxDepartmentDepth {
		if _, ok := visited[id]; ok {
			return nil, ErrDepartmentCycle
		}
		visited[id] = struct{}{}

		d, ok := lookup(id)
		if !ok {
			return nil, ErrDepartmentNotFound
		}

		chain = append(chain, d.ID)
		id = d.ParentID
	}

	if id != "" {
		// Depth bound hit without reaching a root.
		return nil, ErrDepartmentCycle
	}

	return chain, nil
}
