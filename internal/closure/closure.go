// Package closure implements the inheritance closure: for every subject
// lacking the override mode flag, permissions and capabilities are
// inherited from its greatest matching path (GMP) — the longest declared
// sibling subject path that prefix-matches it under component-wise
// globbing.
//
// The closure-over-a-graph shape here (resolve each node from an already
// resolved predecessor, visiting nodes in an order that guarantees the
// predecessor is ready first) mirrors this module's authorization-model
// ancestry's transitive-closure flattening, substituting "ascending path
// length" for that code's DFS-with-visited-set traversal order.
package closure

import (
	"sort"
	"strings"
	"sync"

	"github.com/gobwas/glob"

	"github.com/pthm/rbacflow/internal/builder"
	"github.com/pthm/rbacflow/pkg/policy"
)

// Apply mutates t in place, closing permissions and capabilities for every
// non-override subject in every role of pol.
func Apply(pol *policy.Policy, t *builder.Tables) {
	for _, role := range pol.Roles {
		if role.IsDomain() {
			continue
		}
		applyRole(role.Name, role.Subjects, t)
	}
}

func applyRole(roleName string, subjects []policy.Subject, t *builder.Tables) {
	var inherit []string
	overrideSet := make(map[string]bool)
	for _, s := range subjects {
		if s.Mode.Override {
			overrideSet[s.Path] = true
		} else {
			inherit = append(inherit, s.Path)
		}
	}
	sort.Slice(inherit, func(i, j int) bool { return len(inherit[i]) < len(inherit[j]) })

	allPaths := make([]string, 0, len(subjects))
	for _, s := range subjects {
		allPaths = append(allPaths, s.Path)
	}

	for _, s := range inherit {
		candidates := make([]string, 0, len(allPaths)-1)
		for _, p := range allPaths {
			if p != s {
				candidates = append(candidates, p)
			}
		}
		parent, found := GMP(candidates, s)
		if !found {
			continue
		}
		childKey := builder.RSKey{Role: roleName, Subject: s}
		parentKey := builder.RSKey{Role: roleName, Subject: parent}

		parentDeltas := t.RoleSubjectCapDeltas[parentKey]
		childDeltas := t.RoleSubjectCapDeltas[childKey]
		merged := make([]policy.CapDelta, 0, len(parentDeltas)+len(childDeltas))
		merged = append(merged, parentDeltas...)
		merged = append(merged, childDeltas...)
		t.RoleSubjectCapDeltas[childKey] = merged
		t.RoleSubjectEffCaps[childKey] = builder.CapCompute(merged)

		if t.RoleSubjectObjects[childKey] == nil {
			t.RoleSubjectObjects[childKey] = make(map[string]bool)
		}
		for o := range t.RoleSubjectObjects[parentKey] {
			if t.RoleSubjectObjects[childKey][o] {
				continue // existing child entry wins
			}
			t.Perms[builder.RSOKey{Role: roleName, Subject: s, Object: o}] =
				t.Perms[builder.RSOKey{Role: roleName, Subject: parent, Object: o}]
			t.RoleSubjectObjects[childKey][o] = true
		}
	}
}

// Components splits a subject/object path into the component vector
// pathmatch and GMP operate on. Every absolute path's first component is
// the empty string before its leading '/', which is what lets a shorter
// prefix like "/usr" match a deeper path like "/usr/bin": their component
// vectors agree position-by-position up to the shorter one's length. "/"
// on its own is the single empty-component path rather than the two empty
// components a naive split would produce, per spec section 4.5.
func Components(path string) []string {
	if path == "/" {
		return []string{""}
	}
	return strings.Split(path, "/")
}

// PathMatch reports whether p2 matches p1 under the component-wise,
// per-segment glob prefix rule: splitting both on '/', p1 must have no
// more components than p2, and every component of p1 (which may contain
// glob wildcards * ? [...]) shell-matches the corresponding component of
// p2.
func PathMatch(p1, p2 string) bool {
	c1 := Components(p1)
	c2 := Components(p2)
	if len(c1) > len(c2) {
		return false
	}
	for i, comp := range c1 {
		if !componentMatch(comp, c2[i]) {
			return false
		}
	}
	return true
}

var (
	compileMu    sync.Mutex
	compileCache = map[string]glob.Glob{}
)

func componentMatch(pattern, s string) bool {
	compileMu.Lock()
	g, ok := compileCache[pattern]
	if !ok {
		compiled, err := glob.Compile(pattern)
		if err != nil {
			compileCache[pattern] = nil
			g = nil
		} else {
			compileCache[pattern] = compiled
			g = compiled
		}
	}
	compileMu.Unlock()
	if g == nil {
		return pattern == s
	}
	return g.Match(s)
}

// GMP returns the greatest matching path in candidates for p: the longest
// string x such that PathMatch(x, p) holds, breaking ties lexicographically
// ascending for determinism. The second result reports whether any
// candidate matched at all; the first result is "" when none did.
func GMP(candidates []string, p string) (string, bool) {
	best := ""
	haveBest := false
	for _, c := range candidates {
		if !PathMatch(c, p) {
			continue
		}
		if !haveBest {
			best, haveBest = c, true
			continue
		}
		if len(c) > len(best) || (len(c) == len(best) && c < best) {
			best = c
		}
	}
	return best, haveBest
}
