// Package graph builds the RBAC transition graph: the fixed-point state
// set and labelled transition relation over (special, user, group,
// subject) tuples, under role, user, group, and exec transitions.
//
// Construction uses an explicit work-list rather than recursion, per this
// analyser's specification note that state counts can be large; a hash
// set plus a slice-backed queue does the job without risking a stack
// overflow on a big policy.
package graph

import (
	"sort"

	"github.com/pthm/rbacflow"
	"github.com/pthm/rbacflow/internal/builder"
	"github.com/pthm/rbacflow/internal/closure"
	"github.com/pthm/rbacflow/pkg/policy"
)

// Options configures graph construction.
type Options struct {
	// Admin, if true, does not blacklist administrative roles.
	Admin bool
	// BestCase, if true, assumes no set-UID/GID binaries: exec never
	// changes the active user or group.
	BestCase bool
}

// Graph is the completed transition system: every reachable state and its
// outgoing edges. It is read-only once Build returns.
type Graph struct {
	States   map[rbacflow.State]bool
	TransMap map[rbacflow.State][]rbacflow.Edge

	// roleKind, roleAdmin, roleTransitions and declaredSubjects are
	// retained so the reachability/flow stages can recompute effective
	// roles, blacklist membership, and GMP-based matching without
	// re-threading the whole policy through every call.
	RoleKind        map[string]rbacflow.RoleKind
	RoleAdmin       map[string]bool
	RoleTransitions map[string][]string
	DeclaredSubjects map[string][]string // role -> declared subject paths
	AllSubjects     []string
	Tables          *builder.Tables
	Blacklisted     map[string]bool
}

// Match returns the greatest matching declared subject path for subject
// within role, and whether one was found. A miss means the subject has no
// governing rule in that role; callers treat that as "no permissions",
// never as a fatal error, consistent with how a missing TransMap entry is
// treated during reachability.
func (g *Graph) Match(role, subject string) (string, bool) {
	decls := g.DeclaredSubjects[role]
	if len(decls) == 0 {
		return "", false
	}
	return closure.GMP(decls, subject)
}

func userRoleOrDontCare(name string, userRoles map[string]bool) string {
	if userRoles[name] {
		return name
	}
	return rbacflow.DontCare
}

func groupRoleOrDontCare(name string, groupRoles map[string]bool) string {
	if groupRoles[name] {
		return name
	}
	return rbacflow.DontCare
}

// Build constructs the transition graph for a domain-expanded policy and
// its permission/capability tables.
func Build(pol *policy.Policy, t *builder.Tables, opts Options) *Graph {
	g := &Graph{
		States:           make(map[rbacflow.State]bool),
		TransMap:         make(map[rbacflow.State][]rbacflow.Edge),
		RoleKind:         make(map[string]rbacflow.RoleKind),
		RoleAdmin:        make(map[string]bool),
		RoleTransitions:  make(map[string][]string),
		DeclaredSubjects: make(map[string][]string),
		Tables:           t,
		Blacklisted:      make(map[string]bool),
	}

	userRoles := map[string]bool{}
	groupRoles := map[string]bool{}
	specialRoles := map[string]bool{}
	subjectSet := map[string]bool{}

	for _, r := range pol.Roles {
		if r.IsDomain() {
			continue
		}
		g.RoleKind[r.Name] = r.Kind
		g.RoleAdmin[r.Name] = r.Admin
		g.RoleTransitions[r.Name] = r.Transitions
		paths := make([]string, 0, len(r.Subjects))
		for _, s := range r.Subjects {
			paths = append(paths, s.Path)
			subjectSet[s.Path] = true
		}
		g.DeclaredSubjects[r.Name] = paths

		switch r.Kind {
		case rbacflow.KindUser:
			userRoles[r.Name] = true
		case rbacflow.KindGroup:
			groupRoles[r.Name] = true
		case rbacflow.KindSpecial:
			specialRoles[r.Name] = true
		}

		if r.Admin && !opts.Admin {
			g.Blacklisted[r.Name] = true
		}
	}

	for s := range subjectSet {
		g.AllSubjects = append(g.AllSubjects, s)
	}
	sort.Strings(g.AllSubjects)

	userChoices := roleChoiceSet(userRoles)
	groupChoices := roleChoiceSet(groupRoles)
	specialChoices := make([]string, 0, len(specialRoles)+1)
	for r := range specialRoles {
		if !g.Blacklisted[r] {
			specialChoices = append(specialChoices, r)
		}
	}
	specialChoices = append(specialChoices, rbacflow.DontCare)
	sort.Strings(specialChoices)

	var queue []rbacflow.State
	for _, sp := range specialChoices {
		for _, u := range userChoices {
			for _, gr := range groupChoices {
				for _, subj := range g.AllSubjects {
					st := rbacflow.State{Special: sp, User: u, Group: gr, Subject: subj}
					if !g.States[st] {
						g.States[st] = true
						queue = append(queue, st)
					}
				}
			}
		}
	}

	processed := make(map[rbacflow.State]bool, len(queue))
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		if processed[s] {
			continue
		}
		processed[s] = true

		edges := g.expand(s, userRoles, groupRoles, opts)
		g.TransMap[s] = edges
		for _, e := range edges {
			if !g.States[e.To] {
				g.States[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	return g
}

func roleChoiceSet(roles map[string]bool) []string {
	out := make([]string, 0, len(roles)+1)
	for r := range roles {
		out = append(out, r)
	}
	out = append(out, rbacflow.DontCare)
	sort.Strings(out)
	return out
}

func (g *Graph) expand(s rbacflow.State, userRoles, groupRoles map[string]bool, opts Options) []rbacflow.Edge {
	role, _ := rbacflow.EffectiveRole(s)
	if g.Blacklisted[role] {
		return nil
	}
	sc, ok := g.Match(role, s.Subject)
	if !ok {
		return nil
	}
	key := builder.RSKey{Role: role, Subject: sc}
	caps := g.Tables.RoleSubjectEffCaps[key]

	var edges []rbacflow.Edge

	// 1. Role transitions.
	targets := append([]string(nil), g.RoleTransitions[role]...)
	targets = append(targets, rbacflow.DontCare)
	for _, rp := range targets {
		if rp != rbacflow.DontCare && g.Blacklisted[rp] {
			continue
		}
		to := rbacflow.State{Special: rp, User: s.User, Group: s.Group, Subject: s.Subject}
		edges = append(edges, rbacflow.Edge{Label: rbacflow.Label{Kind: rbacflow.LabelSetRole, Arg: rp}, To: to})
	}

	// 2. User transitions.
	if caps.Has(rbacflow.CapSetUID) {
		for u := range g.Tables.UserTrans[key] {
			to := rbacflow.State{
				Special: s.Special,
				User:    userRoleOrDontCare(u, userRoles),
				Group:   s.Group,
				Subject: s.Subject,
			}
			edges = append(edges, rbacflow.Edge{Label: rbacflow.Label{Kind: rbacflow.LabelSetUID, Arg: u}, To: to})
		}
	}

	// 3. Group transitions.
	if caps.Has(rbacflow.CapSetGID) {
		for gr := range g.Tables.GroupTrans[key] {
			to := rbacflow.State{
				Special: s.Special,
				User:    s.User,
				Group:   groupRoleOrDontCare(gr, groupRoles),
				Subject: s.Subject,
			}
			edges = append(edges, rbacflow.Edge{Label: rbacflow.Label{Kind: rbacflow.LabelSetGID, Arg: gr}, To: to})
		}
	}

	// 4. Exec transitions.
	for obj := range g.Tables.RoleSubjectObjects[key] {
		perm := g.Tables.Perms[builder.RSOKey{Role: role, Subject: sc, Object: obj}]
		if !hasExec(perm) {
			continue
		}
		for _, sp := range g.execImage(obj, role, sc) {
			if opts.BestCase {
				to := rbacflow.State{Special: s.Special, User: s.User, Group: s.Group, Subject: sp}
				edges = append(edges, rbacflow.Edge{Label: rbacflow.Label{Kind: rbacflow.LabelExec, Arg: obj}, To: to})
				continue
			}
			users := withCurrent(g.Tables.UserTrans[key], s.User)
			groups := withCurrent(g.Tables.GroupTrans[key], s.Group)
			for u := range users {
				for gr := range groups {
					to := rbacflow.State{
						Special: s.Special,
						User:    userRoleOrDontCare(u, userRoles),
						Group:   groupRoleOrDontCare(gr, groupRoles),
						Subject: sp,
					}
					edges = append(edges, rbacflow.Edge{Label: rbacflow.Label{Kind: rbacflow.LabelExec, Arg: obj}, To: to})
				}
			}
		}
	}

	return edges
}

func hasExec(perm string) bool {
	hasX, hasH := false, false
	for _, c := range perm {
		switch c {
		case 'x':
			hasX = true
		case 'h':
			hasH = true
		}
	}
	return hasX && !hasH
}

func withCurrent(set map[string]bool, current string) map[string]bool {
	out := make(map[string]bool, len(set)+1)
	for k := range set {
		out[k] = true
	}
	out[current] = true
	return out
}

// execImage computes exImg(o, role, sc): the candidate subject contexts a
// newly exec'd image at path o runs under. It is the declared subject
// whose path best matches o (the binary's own identity as a subject),
// together with every declared subject still governed by the same rule sc
// that sits beneath o in the path hierarchy.
func (g *Graph) execImage(obj, role, sc string) []string {
	seen := map[string]bool{}
	var out []string
	if gmp, ok := closure.GMP(g.AllSubjects, obj); ok {
		seen[gmp] = true
		out = append(out, gmp)
	}
	for _, s2 := range g.AllSubjects {
		if seen[s2] {
			continue
		}
		if !closure.PathMatch(obj, s2) {
			continue
		}
		m, ok := g.Match(role, s2)
		if ok && m == sc {
			seen[s2] = true
			out = append(out, s2)
		}
	}
	return out
}
