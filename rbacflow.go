// Package rbacflow statically analyses a Grsecurity-style RBAC policy for
// information-flow vulnerabilities reachable from a configured set of entry
// points.
//
// Given a policy, a set of sensitive target paths, and a set of entry-point
// process states, rbacflow answers three questions: whether a target is
// directly readable or writable from an entry point after some sequence of
// role, user, group, or exec transitions; whether an indirect flow exists
// through an intermediate object written by one actor and read by another;
// and whether an object can be both written and later executed along a path
// from an entry point.
//
// The package tree mirrors the analysis pipeline:
//
//   - pkg/policy holds the parsed AST (roles, subjects, objects, transitions)
//   - pkg/preprocess expands include/define/replace directives
//   - pkg/lexparse tokenises and parses policy text into pkg/policy values
//   - pkg/analysis builds permissions, inheritance, the transition graph,
//     and runs the reachability and flow procedures
//   - pkg/report renders and exports findings
//
// This root package holds the types shared by every stage: role kinds,
// RBAC states, transition labels, and the sentinel errors callers match on
// with errors.Is.
package rbacflow

import "fmt"

// RoleKind classifies a Role. The zero value is not a valid kind.
type RoleKind byte

const (
	// KindSpecial marks a role declared with no explicit kind suffix.
	KindSpecial RoleKind = 's'
	// KindUser marks a role declared "role NAME u".
	KindUser RoleKind = 'u'
	// KindGroup marks a role declared "role NAME g".
	KindGroup RoleKind = 'g'
	// KindDefault marks the implicit "default" role.
	KindDefault RoleKind = 'd'
)

// String renders the single-letter kind used in stdout state rendering.
func (k RoleKind) String() string {
	switch k {
	case KindSpecial:
		return "S"
	case KindUser:
		return "U"
	case KindGroup:
		return "G"
	case KindDefault:
		return "D"
	default:
		return "?"
	}
}

// Valid reports whether k is one of the four declared kinds.
func (k RoleKind) Valid() bool {
	switch k {
	case KindSpecial, KindUser, KindGroup, KindDefault:
		return true
	default:
		return false
	}
}

// DontCare is the sentinel role name meaning "any role or none", used to
// model universal user/group transitions and the default slot of a state.
const DontCare = "_"

// DefaultRoleName is the name of the implicit role every policy carries.
const DefaultRoleName = "default"

// Cap is a tracked Linux capability. Only CapSetUID and CapSetGID are
// semantically meaningful; all other capabilities are parsed and discarded
// per the policy grammar.
type Cap byte

const (
	CapSetUID Cap = iota
	CapSetGID
)

// CapSet is the small, fixed-size effective-capability set tracked for a
// (role, subject) pair. Using a struct of two bools instead of a map keeps
// cap_compute allocation-free; the tracked universe never grows.
type CapSet struct {
	SetUID bool
	SetGID bool
}

// Has reports whether c is present in the set.
func (cs CapSet) Has(c Cap) bool {
	switch c {
	case CapSetUID:
		return cs.SetUID
	case CapSetGID:
		return cs.SetGID
	default:
		return false
	}
}

// State is the 4-tuple (special, user, group, subject) describing which
// roles and which executing subject are active. Each of Special, User, and
// Group is either a role name of the matching kind or DontCare.
type State struct {
	Special string
	User    string
	Group   string
	Subject string
}

// String renders a state as "special:KIND:subject", the format used by
// stdout trace rendering. It is not the entry-points file format, whose
// first field is the effective role name rather than the special slot.
func (s State) String() string {
	role, kind := EffectiveRole(s)
	_ = role
	return fmt.Sprintf("%s:%s:%s", s.Special, kind.String(), s.Subject)
}

// EffectiveRole scans [Special, User, Group] in order, skipping DontCare,
// and returns the first non-DontCare name together with its kind. If all
// three are DontCare the effective role is the default role.
func EffectiveRole(s State) (name string, kind RoleKind) {
	if s.Special != DontCare && s.Special != "" {
		return s.Special, KindSpecial
	}
	if s.User != DontCare && s.User != "" {
		return s.User, KindUser
	}
	if s.Group != DontCare && s.Group != "" {
		return s.Group, KindGroup
	}
	return DefaultRoleName, KindDefault
}

// LabelKind distinguishes the four transition label shapes.
type LabelKind byte

const (
	LabelSetRole LabelKind = iota
	LabelSetUID
	LabelSetGID
	LabelExec
)

// Label is a transition label: set_role(r), set_UID(u), set_GID(g), or
// exec(path). Arg holds the role name or exec path as appropriate.
type Label struct {
	Kind LabelKind
	Arg  string
}

func (l Label) String() string {
	switch l.Kind {
	case LabelSetRole:
		return fmt.Sprintf("set_role(%s)", l.Arg)
	case LabelSetUID:
		return fmt.Sprintf("set_UID(%s)", l.Arg)
	case LabelSetGID:
		return fmt.Sprintf("set_GID(%s)", l.Arg)
	case LabelExec:
		return fmt.Sprintf("exec(%s)", l.Arg)
	default:
		return "label(?)"
	}
}

// Edge is one outgoing transition from a state, carrying its label and
// destination.
type Edge struct {
	Label Label
	To    State
}
