package rbac

import (
	"fmt"
	"strings"

	"github.com/miamirp/cityrecords/pkg/auth"
)

// Rule is the permitted role set for each operation on one kind. Read covers
// ListAll, Get and Search.
type Rule struct {
	Read   RoleSet
	Create RoleSet
	Update RoleSet
	Delete RoleSet
}

// Policy is an immutable table of rules keyed by kind.
type Policy struct {
	rules map[Kind]Rule
}

// NewPolicy builds a policy from rules. Kinds absent from rules permit nothing.
func NewPolicy(rules map[Kind]Rule) *Policy {
	copied := make(map[Kind]Rule, len(rules))
	for k, r := range rules {
		copied[k] = r
	}
	return &Policy{rules: copied}
}

var (
	directors    = []auth.Role{auth.RoleDirectorMPD, auth.RoleDirectorFHP, auth.RoleDirectorFSD}
	lawEnforcers = []auth.Role{auth.RoleMPD, auth.RoleFHP, auth.RoleFSD, auth.RoleICE, auth.RoleIT}
	userAdmins   = append([]auth.Role{auth.RoleIT}, directors...)
)

// DefaultPolicy is the department access table. Director roles carry only
// what is listed for them; they do not inherit their base department.
func DefaultPolicy() *Policy {
	dmvIT := Roles(auth.RoleDMV, auth.RoleIT)
	irsIT := Roles(auth.RoleIRS, auth.RoleIT)

	return NewPolicy(map[Kind]Rule{
		KindCitizen: {
			Read:   Any(),
			Create: dmvIT,
			Update: Any(),
			Delete: Roles(auth.RoleIT),
		},
		KindVehicle: {
			Read:   Any(),
			Create: dmvIT,
			Update: dmvIT,
			Delete: Roles(auth.RoleIT),
		},
		KindDriverLicense: {
			Read:   Roles(auth.RoleDMV, auth.RoleMPD, auth.RoleFHP, auth.RoleFSD, auth.RoleIT),
			Create: dmvIT,
			Update: dmvIT,
			Delete: Nobody(),
		},
		KindBusiness: {
			Read:   irsIT,
			Create: irsIT,
			Update: irsIT,
			Delete: Nobody(),
		},
		KindProperty: {
			Read:   irsIT,
			Create: irsIT,
			Update: irsIT,
			Delete: Nobody(),
		},
		KindPermit: {
			Read:   dmvIT,
			Create: dmvIT,
			Update: dmvIT,
			Delete: Nobody(),
		},
		KindCriminalRecord: {
			Read:   Roles(lawEnforcers...),
			Create: Roles(lawEnforcers...),
			Update: Roles(lawEnforcers...),
			Delete: Nobody(),
		},
		KindUser: {
			Read:   Roles(userAdmins...),
			Create: Roles(userAdmins...),
			Update: Roles(userAdmins...),
			Delete: Roles(auth.RoleIT),
		},
	})
}

// Allowed returns the role set for (kind, op). Unknown pairs permit nobody.
func (p *Policy) Allowed(kind Kind, op Operation) RoleSet {
	rule, ok := p.rules[kind]
	if !ok {
		return Nobody()
	}

	switch op {
	case OpListAll, OpGet, OpSearch:
		return rule.Read
	case OpCreate:
		return rule.Create
	case OpUpdate:
		return rule.Update
	case OpDelete:
		return rule.Delete
	default:
		return Nobody()
	}
}

// Matrix renders the policy as a markdown table, one row per kind.
func (p *Policy) Matrix() string {
	var b strings.Builder

	b.WriteString("| Kind |")
	for _, op := range AllOperations {
		fmt.Fprintf(&b, " %s |", op)
	}
	b.WriteString("\n|---|")
	for range AllOperations {
		b.WriteString("---|")
	}
	b.WriteString("\n")

	for _, kind := range AllKinds {
		fmt.Fprintf(&b, "| %s |", kind)
		for _, op := range AllOperations {
			fmt.Fprintf(&b, " %s |", p.Allowed(kind, op))
		}
		b.WriteString("\n")
	}

	b.WriteString("\nUser Delete is always denied when the target is the caller.\n")
	return b.String()
}
