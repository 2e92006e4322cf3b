package core

// policy.go decides what a principal may see and change.
//
// Every read path (get, list, update-lookup, delete-lookup, stats, export)
// starts from ScopeFor. A Scope can only be built here, and the zero Scope
// matches nothing, so a forgotten scope fails closed.

// Scope is the subset of records a principal may read.
type Scope struct {
	all     bool
	ownerID int64
}

// AllRecords is the unrestricted scope.
func AllRecords() Scope { return Scope{all: true} }

// OwnedBy restricts a scope to records owned by ownerID.
func OwnedBy(ownerID int64) Scope { return Scope{ownerID: ownerID} }

// Unrestricted reports whether the scope covers every record.
func (s Scope) Unrestricted() bool { return s.all }

// OwnerID returns the owner the scope is restricted to.
// ok is false for the unrestricted scope and for the zero Scope.
func (s Scope) OwnerID() (id int64, ok bool) {
	if s.all || s.ownerID == 0 {
		return 0, false
	}
	return s.ownerID, true
}

// Empty reports whether the scope matches nothing.
func (s Scope) Empty() bool { return !s.all && s.ownerID == 0 }

// Contains reports whether r is inside the scope.
func (s Scope) Contains(r Record) bool {
	if s.all {
		return true
	}
	return s.ownerID != 0 && r.OwnerID == s.ownerID
}

// ScopeFor returns the read scope for p.
func ScopeFor(p Principal) Scope {
	switch p.Role {
	case RoleOfficer:
		return AllRecords()
	case RoleFarmer:
		return OwnedBy(p.ID)
	default:
		return Scope{}
	}
}

// CanMutate reports whether p may update or delete r.
func CanMutate(p Principal, r Record) bool {
	switch p.Role {
	case RoleOfficer:
		return true
	case RoleFarmer:
		return r.OwnerID == p.ID
	default:
		return false
	}
}

// CanBulkUpload reports whether p may run CSV ingestion or bulk delete.
func CanBulkUpload(p Principal) bool {
	switch p.Role {
	case RoleOfficer:
		return true
	case RoleFarmer:
		return false
	default:
		return false
	}
}
