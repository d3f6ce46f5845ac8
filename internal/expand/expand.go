// Package expand implements the domain expander: each parsed "domain"
// role, which binds a set of user names to one shared tail, is split into
// one ordinary role per user name, grounded on the transitive-closure
// flattening shape in this module's authorization-model ancestry, which
// likewise turns one declarative grouping into many concrete per-entity
// records before the rest of the pipeline runs.
package expand

import "github.com/pthm/rbacflow/pkg/policy"

// Domains replaces every domain declaration in pol with one role per
// member user name, preserving declaration order: non-domain roles keep
// their position, and a domain's expansion is inserted where the domain
// declaration was.
func Domains(pol *policy.Policy) *policy.Policy {
	out := make([]policy.Role, 0, len(pol.Roles))
	for _, r := range pol.Roles {
		if !r.IsDomain() {
			out = append(out, r)
			continue
		}
		for _, name := range r.DomainUsers {
			clone := r
			clone.Name = name
			clone.DomainUsers = nil
			clone.Subjects = cloneSubjects(r.Subjects)
			out = append(out, clone)
		}
	}
	return &policy.Policy{Roles: out}
}

func cloneSubjects(subjs []policy.Subject) []policy.Subject {
	out := make([]policy.Subject, len(subjs))
	copy(out, subjs)
	for i := range out {
		out[i].Objects = append([]policy.Object(nil), subjs[i].Objects...)
		out[i].Capabilities = append([]policy.CapDelta(nil), subjs[i].Capabilities...)
	}
	return out
}
