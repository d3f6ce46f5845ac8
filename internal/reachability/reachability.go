// Package reachability implements the BFS/DFS variants that walk a
// completed transition graph (internal/graph) to produce traces and
// per-object reachable sets: ReachableStates, ReachableStatesE, and the
// two-phase ReachableWriteObjects search, plus the Read/Write predicates
// the flow analysers in internal/flow build on.
package reachability

import (
	"sort"
	"strings"

	"github.com/pthm/rbacflow"
	"github.com/pthm/rbacflow/internal/builder"
	"github.com/pthm/rbacflow/internal/closure"
	"github.com/pthm/rbacflow/internal/graph"
)

// Step is one hop of a reverse-renderable trace: the predecessor state and
// the label of the edge taken from it.
type Step struct {
	From  rbacflow.State
	Label rbacflow.Label
}

func blacklisted(g *graph.Graph, s rbacflow.State) bool {
	role, _ := rbacflow.EffectiveRole(s)
	return g.Blacklisted[role]
}

// ReachableStates performs a work-list BFS from start, returning every
// reachable, non-blacklisted state mapped to the first path found to it
// (a flat label sequence from start).
func ReachableStates(g *graph.Graph, start rbacflow.State) map[rbacflow.State][]rbacflow.Label {
	out := map[rbacflow.State][]rbacflow.Label{}
	if blacklisted(g, start) {
		return out
	}
	out[start] = nil
	queue := []rbacflow.State{start}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		for _, e := range g.TransMap[s] {
			if blacklisted(g, e.To) {
				continue
			}
			if _, seen := out[e.To]; seen {
				continue
			}
			path := append(append([]rbacflow.Label(nil), out[s]...), e.Label)
			out[e.To] = path
			queue = append(queue, e.To)
		}
	}
	return out
}

// ReachableStatesE is ReachableStates, but each path is a sequence of
// (predecessor, label) steps, enabling reverse rendering of a trace.
func ReachableStatesE(g *graph.Graph, start rbacflow.State) map[rbacflow.State][]Step {
	out := map[rbacflow.State][]Step{}
	if blacklisted(g, start) {
		return out
	}
	out[start] = nil
	queue := []rbacflow.State{start}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		for _, e := range g.TransMap[s] {
			if blacklisted(g, e.To) {
				continue
			}
			if _, seen := out[e.To]; seen {
				continue
			}
			path := append(append([]Step(nil), out[s]...), Step{From: s, Label: e.Label})
			out[e.To] = path
			queue = append(queue, e.To)
		}
	}
	return out
}

// permsFor resolves the permission string governing obj from state s: the
// effective role's declared subject (via GMP match on s.Subject), then the
// GMP of obj among that subject's declared objects. ok is false if either
// match fails, in which case the caller must treat obj as not permitted
// rather than erroring — a missing table entry is a dead end, not a fault.
func permsFor(g *graph.Graph, s rbacflow.State, obj string) (string, bool) {
	role, _ := rbacflow.EffectiveRole(s)
	sc, ok := g.Match(role, s.Subject)
	if !ok {
		return "", false
	}
	key := builder.RSKey{Role: role, Subject: sc}
	objs := g.Tables.RoleSubjectObjects[key]
	if len(objs) == 0 {
		return "", false
	}
	candidates := make([]string, 0, len(objs))
	for o := range objs {
		candidates = append(candidates, o)
	}
	objGMP, ok := closure.GMP(candidates, obj)
	if !ok {
		return "", false
	}
	pis, ok := g.Tables.Perms[builder.RSOKey{Role: role, Subject: sc, Object: objGMP}]
	return pis, ok
}

// Read reports whether obj is readable from state s.
func Read(g *graph.Graph, s rbacflow.State, obj string) bool {
	pis, ok := permsFor(g, s, obj)
	if !ok {
		return false
	}
	return strings.ContainsRune(pis, 'r') && !strings.ContainsRune(pis, 'h')
}

// Write reports whether obj is writable (w, a, or c) from state s.
func Write(g *graph.Graph, s rbacflow.State, obj string) bool {
	pis, ok := permsFor(g, s, obj)
	if !ok {
		return false
	}
	if strings.ContainsRune(pis, 'h') {
		return false
	}
	return strings.ContainsAny(pis, "wac")
}

// ObjectsWithWritePermissions returns every object declared for state s's
// governing subject that s can write, in deterministic sorted order.
func ObjectsWithWritePermissions(g *graph.Graph, s rbacflow.State) []string {
	role, _ := rbacflow.EffectiveRole(s)
	sc, ok := g.Match(role, s.Subject)
	if !ok {
		return nil
	}
	key := builder.RSKey{Role: role, Subject: sc}
	var out []string
	for obj := range g.Tables.RoleSubjectObjects[key] {
		if Write(g, s, obj) {
			out = append(out, obj)
		}
	}
	sort.Strings(out)
	return out
}

// ObjectsWithExecPermissions returns every object declared for state s's
// governing subject that is executable (x present, h absent) from s, in
// deterministic sorted order.
func ObjectsWithExecPermissions(g *graph.Graph, s rbacflow.State) []string {
	role, _ := rbacflow.EffectiveRole(s)
	sc, ok := g.Match(role, s.Subject)
	if !ok {
		return nil
	}
	key := builder.RSKey{Role: role, Subject: sc}
	var out []string
	for obj := range g.Tables.RoleSubjectObjects[key] {
		pis, ok := g.Tables.Perms[builder.RSOKey{Role: role, Subject: sc, Object: obj}]
		if !ok {
			continue
		}
		if strings.ContainsRune(pis, 'x') && !strings.ContainsRune(pis, 'h') {
			out = append(out, obj)
		}
	}
	sort.Strings(out)
	return out
}

type phase byte

const (
	phaseRead phase = iota
	phaseWrite
)

type item struct {
	state rbacflow.State
	ph    phase
	path  []Step
}

// ReachableWriteObjects implements the two-phase search: starting at s in
// phase READ, the walker switches to phase WRITE the first time it visits
// a state from which target is readable, and from then on every visited
// state (including the one that triggered the switch) contributes its
// writable objects to the result, each annotated with every trace by
// which it was reached. A state may appear in both phases, tracked with
// separate visited sets.
func ReachableWriteObjects(g *graph.Graph, s rbacflow.State, target string) map[string][][]Step {
	result := map[string][][]Step{}
	if blacklisted(g, s) {
		return result
	}
	visitedRead := map[rbacflow.State]bool{s: true}
	visitedWrite := map[rbacflow.State]bool{}

	startPhase := phaseRead
	if Read(g, s, target) {
		startPhase = phaseWrite
		visitedWrite[s] = true
	}
	queue := []item{{state: s, ph: startPhase, path: nil}}

	contribute := func(st rbacflow.State, path []Step) {
		for _, obj := range ObjectsWithWritePermissions(g, st) {
			result[obj] = append(result[obj], path)
		}
	}
	if startPhase == phaseWrite {
		contribute(s, nil)
	}

	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		for _, e := range g.TransMap[it.state] {
			if blacklisted(g, e.To) {
				continue
			}
			nextPhase := it.ph
			if nextPhase == phaseRead && Read(g, e.To, target) {
				nextPhase = phaseWrite
			}
			visited := visitedRead
			if nextPhase == phaseWrite {
				visited = visitedWrite
			}
			if visited[e.To] {
				continue
			}
			visited[e.To] = true
			path := append(append([]Step(nil), it.path...), Step{From: it.state, Label: e.Label})
			if nextPhase == phaseWrite {
				contribute(e.To, path)
			}
			queue = append(queue, item{state: e.To, ph: nextPhase, path: path})
		}
	}
	return result
}
