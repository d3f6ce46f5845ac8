// Package builder implements the permission builder: it walks every
// role/subject/object triple in a domain-expanded policy.Policy and
// produces the per-triple permission table, per-(role, subject) capability
// deltas and effective sets, and the user/group transition sets each
// subject allows, following the allow/deny/unspecified table in this
// analyser's specification of role-transition semantics.
package builder

import "github.com/pthm/rbacflow/pkg/policy"
import "github.com/pthm/rbacflow"

// RSKey identifies a (role, subject) pair.
type RSKey struct {
	Role    string
	Subject string
}

// RSOKey identifies a (role, subject, object) triple.
type RSOKey struct {
	Role    string
	Subject string
	Object  string
}

// Tables holds every per-(role,subject[,object]) table the permission
// builder produces. Later stages (internal/closure, internal/graph)
// consume these read-only; closure additionally extends RSOKey entries
// and RoleSubjectCapDeltas during inheritance.
type Tables struct {
	Perms              map[RSOKey]string
	RoleSubjectCapDeltas map[RSKey][]policy.CapDelta
	RoleSubjectEffCaps map[RSKey]rbacflow.CapSet
	RoleSubjects       map[string]map[string]policy.Mode
	RoleSubjectObjects map[RSKey]map[string]bool
	UserTrans          map[RSKey]map[string]bool
	GroupTrans         map[RSKey]map[string]bool
}

func newTables() *Tables {
	return &Tables{
		Perms:                make(map[RSOKey]string),
		RoleSubjectCapDeltas: make(map[RSKey][]policy.CapDelta),
		RoleSubjectEffCaps:   make(map[RSKey]rbacflow.CapSet),
		RoleSubjects:         make(map[string]map[string]policy.Mode),
		RoleSubjectObjects:   make(map[RSKey]map[string]bool),
		UserTrans:            make(map[RSKey]map[string]bool),
		GroupTrans:           make(map[RSKey]map[string]bool),
	}
}

// Build walks pol (already domain-expanded) and produces its Tables.
// allUserRoles and allGroupRoles are the full set of declared user/group
// role names, needed to resolve "unspecified"/"allow"/"deny" transition
// policies.
func Build(pol *policy.Policy, allUserRoles, allGroupRoles map[string]bool) *Tables {
	t := newTables()
	for _, role := range pol.Roles {
		if role.IsDomain() {
			continue // caller must run internal/expand first
		}
		if _, ok := t.RoleSubjects[role.Name]; !ok {
			t.RoleSubjects[role.Name] = make(map[string]policy.Mode)
		}
		for _, subj := range role.Subjects {
			t.RoleSubjects[role.Name][subj.Path] = subj.Mode
			key := RSKey{Role: role.Name, Subject: subj.Path}

			deltas := append([]policy.CapDelta(nil), subj.Capabilities...)
			t.RoleSubjectCapDeltas[key] = deltas
			t.RoleSubjectEffCaps[key] = CapCompute(deltas)

			t.UserTrans[key] = resolveTransition(subj.UserTrans, allUserRoles)
			t.GroupTrans[key] = resolveTransition(subj.GroupTrans, allGroupRoles)

			objs := make(map[string]bool, len(subj.Objects))
			for _, o := range subj.Objects {
				t.Perms[RSOKey{Role: role.Name, Subject: subj.Path, Object: o.Path}] = o.Permission
				objs[o.Path] = true
			}
			t.RoleSubjectObjects[key] = objs
		}
	}
	return t
}

// CapCompute implements cap_compute: start with an empty effective set
// restricted to the tracked universe {CAP_SETUID, CAP_SETGID}, then apply
// deltas in declaration order. +CAP_ALL/-CAP_ALL set or clear the whole
// universe; other deltas toggle membership of their capability if it is
// inside the universe, and are ignored otherwise.
func CapCompute(deltas []policy.CapDelta) rbacflow.CapSet {
	var cs rbacflow.CapSet
	for _, d := range deltas {
		if d.CapAll {
			cs.SetUID = d.Add
			cs.SetGID = d.Add
			continue
		}
		switch d.Cap {
		case rbacflow.CapSetUID:
			cs.SetUID = d.Add
		case rbacflow.CapSetGID:
			cs.SetGID = d.Add
		}
	}
	return cs
}

// resolveTransition implements the allow/deny/unspecified table: the
// returned set contains every role name (plus rbacflow.DontCare where
// applicable) the policy clause permits.
func resolveTransition(tp policy.TransitionPolicy, allRoles map[string]bool) map[string]bool {
	out := make(map[string]bool)
	switch tp.Kind {
	case policy.PolicyUnspecified:
		for r := range allRoles {
			out[r] = true
		}
		out[rbacflow.DontCare] = true
	case policy.PolicyAllow:
		namesNonRole := false
		for _, name := range tp.Roles {
			if allRoles[name] {
				out[name] = true
			} else {
				namesNonRole = true
			}
		}
		if namesNonRole {
			out[rbacflow.DontCare] = true
		}
	case policy.PolicyDeny:
		for r := range allRoles {
			out[r] = true
		}
		out[rbacflow.DontCare] = true
		for _, name := range tp.Roles {
			delete(out, name)
		}
	}
	return out
}
