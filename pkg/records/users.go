package records

import (
	"fmt"
	"strings"

	"github.com/miamirp/cityrecords/pkg/auth"
)

// UserInput is a validated account payload. Nil pointers mean "not supplied".
type UserInput struct {
	Username   *string
	Password   *string
	Role       *auth.Role
	Department *string
	// DepartmentSet is true when the payload carried department, including null.
	DepartmentSet bool
	IsActive      *bool
}

// ValidateUser checks an account payload. Passwords are checked for length
// only; hashing happens in the handler.
func ValidateUser(input map[string]interface{}, mode Mode) (*UserInput, error) {
	out := &UserInput{}
	verr := &ValidationError{}

	if raw, ok := input["username"]; ok {
		s, isStr := raw.(string)
		switch {
		case !isStr:
			verr.Add("username", "must be a string")
		case strings.TrimSpace(s) == "":
			verr.Add("username", "is required")
		default:
			s = strings.TrimSpace(s)
			out.Username = &s
		}
	} else if mode == ModeCreate {
		verr.Add("username", "is required")
	}

	if raw, ok := input["password"]; ok {
		s, isStr := raw.(string)
		switch {
		case !isStr:
			verr.Add("password", "must be a string")
		case len(s) < auth.MinPasswordLength:
			verr.Add("password", fmt.Sprintf("must be at least %d characters", auth.MinPasswordLength))
		default:
			out.Password = &s
		}
	} else if mode == ModeCreate {
		verr.Add("password", "is required")
	}

	if raw, ok := input["role"]; ok {
		s, _ := raw.(string)
		role, err := auth.ParseRole(s)
		if err != nil {
			verr.Add("role", "must be one of "+roleList())
		} else {
			out.Role = &role
		}
	} else if mode == ModeCreate {
		verr.Add("role", "is required")
	}

	if raw, ok := input["department"]; ok {
		out.DepartmentSet = true
		switch v := raw.(type) {
		case nil:
		case string:
			if v != "" {
				out.Department = &v
			}
		default:
			verr.Add("department", "must be a string")
		}
	}

	if raw, ok := input["isActive"]; ok {
		b, valid := toBool(raw)
		if !valid {
			verr.Add("isActive", "must be a boolean")
		} else {
			out.IsActive = &b
		}
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return out, nil
}

func roleList() string {
	names := make([]string, len(auth.AllRoles))
	for i, r := range auth.AllRoles {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}
