// Package policy defines the abstract syntax tree produced by
// pkg/lexparse: roles, subjects, objects, transitions, and the capability
// and user/group transition declarations attached to a subject.
//
// Values in this package are immutable once returned by the parser; later
// pipeline stages (domain expansion, permission building, inheritance)
// consume a Policy and produce the analysis-facing tables in pkg/analysis.
package policy

import "github.com/pthm/rbacflow"

// TransitionPolicy is the allow/deny/unspecified shape shared by
// user_transition_* and group_transition_* clauses.
type TransitionPolicy struct {
	// Kind is one of PolicyUnspecified, PolicyAllow, PolicyDeny.
	Kind  TransitionKind
	Roles []string // named roles for Allow/Deny; empty for Unspecified
}

// TransitionKind is a sum type over the three transition-policy shapes.
type TransitionKind byte

const (
	PolicyUnspecified TransitionKind = iota
	PolicyAllow
	PolicyDeny
)

// CapDelta is one "+CAP_X" or "-CAP_X" clause in declaration order.
// CapAll represents "CAP_ALL" and is resolved against the tracked
// universe by the permission builder's cap_compute.
type CapDelta struct {
	Add   bool
	CapAll bool
	Cap   rbacflow.Cap // ignored when CapAll is true
}

// Object is a declared (path, permission string) pair inside a subject.
type Object struct {
	Path       string
	Permission string
}

// Mode is the subject mode-flag set. Override corresponds to the 'o' flag
// that disables inheritance closure for that subject.
type Mode struct {
	Override bool
	Raw      string // full mode-flag string as parsed, for diagnostics
}

// Subject is a filesystem path declared inside a role, with its
// transition policies, capability deltas, and declared objects.
type Subject struct {
	Path          string
	Mode          Mode
	UserTrans     TransitionPolicy
	GroupTrans    TransitionPolicy
	Capabilities  []CapDelta
	Objects       []Object
}

// Role is a parsed role declaration: a name (or, pre-domain-expansion, a
// user set), its kind, administrative flag, allowed role transitions, and
// its subjects.
type Role struct {
	// Name is the single role name after domain expansion. Before
	// expansion, a domain declaration's members live in DomainUsers and
	// Name is empty.
	Name string
	// DomainUsers is non-empty only for an unexpanded "domain" role.
	DomainUsers []string
	Kind        rbacflow.RoleKind
	Admin       bool
	Transitions []string // allowed role_transitions target names
	Subjects    []Subject
}

// IsDomain reports whether this declaration binds a set of users rather
// than a single role name, and so still needs internal/expand.
func (r Role) IsDomain() bool { return len(r.DomainUsers) > 0 }

// Policy is the parsed form of an entire (already preprocessed) policy
// file: an ordered list of role declarations.
type Policy struct {
	Roles []Role
}
