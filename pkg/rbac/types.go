package rbac

import (
	"fmt"
	"strings"

	"github.com/miamirp/cityrecords/pkg/auth"
)

// Kind is a record type under access control
type Kind string

const (
	KindCitizen        Kind = "Citizen"
	KindVehicle        Kind = "Vehicle"
	KindDriverLicense  Kind = "DriverLicense"
	KindBusiness       Kind = "Business"
	KindProperty       Kind = "Property"
	KindPermit         Kind = "Permit"
	KindCriminalRecord Kind = "CriminalRecord"
	KindUser           Kind = "User"
)

// AllKinds lists every kind in display order.
var AllKinds = []Kind{
	KindCitizen, KindVehicle, KindDriverLicense, KindBusiness,
	KindProperty, KindPermit, KindCriminalRecord, KindUser,
}

var kindPaths = map[Kind]string{
	KindCitizen:        "citizens",
	KindVehicle:        "vehicles",
	KindDriverLicense:  "driver-licenses",
	KindBusiness:       "businesses",
	KindProperty:       "properties",
	KindPermit:         "permits",
	KindCriminalRecord: "criminal-records",
	KindUser:           "users",
}

// Path returns the URL collection segment for the kind, e.g. "criminal-records".
func (k Kind) Path() string {
	return kindPaths[k]
}

// KindFromPath is the inverse of Kind.Path.
func KindFromPath(path string) (Kind, error) {
	for k, p := range kindPaths {
		if p == path {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown record collection %q", path)
}

// Operation is an action on a kind
type Operation string

const (
	OpListAll Operation = "ListAll"
	OpGet     Operation = "Get"
	OpSearch  Operation = "Search"
	OpCreate  Operation = "Create"
	OpUpdate  Operation = "Update"
	OpDelete  Operation = "Delete"
)

// AllOperations lists every operation in display order.
var AllOperations = []Operation{OpListAll, OpGet, OpSearch, OpCreate, OpUpdate, OpDelete}

// RoleSet is the set of roles permitted to perform an operation. The zero
// value permits nobody.
type RoleSet struct {
	any   bool
	roles map[auth.Role]struct{}
}

// Any permits every authenticated, active identity.
func Any() RoleSet {
	return RoleSet{any: true}
}

// Roles permits exactly the listed roles.
func Roles(roles ...auth.Role) RoleSet {
	set := RoleSet{roles: make(map[auth.Role]struct{}, len(roles))}
	for _, r := range roles {
		set.roles[r] = struct{}{}
	}
	return set
}

// Nobody permits no role at all.
func Nobody() RoleSet {
	return RoleSet{}
}

// IsAny reports whether the set is the ANY marker.
func (s RoleSet) IsAny() bool {
	return s.any
}

// IsEmpty reports whether the set permits nobody.
func (s RoleSet) IsEmpty() bool {
	return !s.any && len(s.roles) == 0
}

// Permits reports whether role is in the set. Only valid roles can match.
func (s RoleSet) Permits(role auth.Role) bool {
	if !role.Valid() {
		return false
	}
	if s.any {
		return true
	}
	_, ok := s.roles[role]
	return ok
}

// List returns the members in auth.AllRoles order. ANY lists every role.
func (s RoleSet) List() []auth.Role {
	out := make([]auth.Role, 0, len(auth.AllRoles))
	for _, r := range auth.AllRoles {
		if s.Permits(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s RoleSet) String() string {
	switch {
	case s.any:
		return "ANY"
	case s.IsEmpty():
		return "none"
	}

	names := make([]string, 0, len(s.roles))
	for _, r := range s.List() {
		names = append(names, string(r))
	}
	return strings.Join(names, ", ")
}
