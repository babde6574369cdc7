package cli

import (
	"github.com/spf13/cobra"

	"github.com/miamirp/cityrecords/pkg/rbac"
)

// NewPolicyCommand creates the policy command, which prints the access
// matrix the server enforces.
func NewPolicyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "policy",
		Short: "Print the role/operation access matrix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			policy := rbac.DefaultPolicy()
			return rootOpts.formatter(cmd).Result(policy.Matrix(), policyTable(policy))
		},
	}
}

// policyTable maps kind -> operation -> permitted roles. "ANY" stands for
// every authenticated role.
func policyTable(p *rbac.Policy) map[rbac.Kind]map[rbac.Operation][]string {
	out := make(map[rbac.Kind]map[rbac.Operation][]string, len(rbac.AllKinds))
	for _, kind := range rbac.AllKinds {
		ops := make(map[rbac.Operation][]string, len(rbac.AllOperations))
		for _, op := range rbac.AllOperations {
			set := p.Allowed(kind, op)
			roles := []string{}
			if set.IsAny() {
				roles = append(roles, "ANY")
			} else {
				for _, r := range set.List() {
					roles = append(roles, string(r))
				}
			}
			ops[op] = roles
		}
		out[kind] = ops
	}
	return out
}
