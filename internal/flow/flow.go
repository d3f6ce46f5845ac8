// Package flow implements the three flow analysers built on top of
// internal/reachability: direct read/write flow, indirect flow through an
// intermediate object, and write-execute flow.
package flow

import (
	"sort"

	"github.com/pthm/rbacflow"
	"github.com/pthm/rbacflow/internal/graph"
	"github.com/pthm/rbacflow/internal/reachability"
)

// Mode selects the predicate a direct-flow search checks.
type Mode byte

const (
	ModeRead Mode = iota
	ModeWrite
)

// Direct is one state, reachable from an entry point (or the entry point
// itself), from which a target is directly readable or writable.
type Direct struct {
	Entry  rbacflow.State
	Target string
	Mode   Mode
	At     rbacflow.State
	Trace  []reachability.Step
}

// DirectFlow checks entry itself, then walks every state reachable from
// entry, reporting each one satisfying the read/write predicate on
// target.
func DirectFlow(g *graph.Graph, entry rbacflow.State, target string, mode Mode) []Direct {
	pred := predicateFor(mode)
	var out []Direct
	if pred(g, entry, target) {
		out = append(out, Direct{Entry: entry, Target: target, Mode: mode, At: entry})
	}
	states := reachability.ReachableStatesE(g, entry)
	keys := sortedStates(states)
	for _, st := range keys {
		if st == entry {
			continue
		}
		if pred(g, st, target) {
			out = append(out, Direct{Entry: entry, Target: target, Mode: mode, At: st, Trace: states[st]})
		}
	}
	return out
}

func predicateFor(mode Mode) func(*graph.Graph, rbacflow.State, string) bool {
	if mode == ModeWrite {
		return reachability.Write
	}
	return reachability.Read
}

// Indirect is a finding that an intermediate object can be written from
// s1 (after reading target) and subsequently read from s2.
type Indirect struct {
	S1, S2       rbacflow.State
	Target       string
	Intermediate string
	WriteTraces  [][]reachability.Step
	ReadTraces   [][]reachability.Step
}

// IndirectFlow computes, for the triple (s1, s2, target), every
// intermediate object writable from s1 after reading target that is also
// readable from some state reachable from s2.
func IndirectFlow(g *graph.Graph, s1, s2 rbacflow.State, target string) []Indirect {
	writeObjs := reachability.ReachableWriteObjects(g, s1, target)
	readStates := reachability.ReachableStatesE(g, s2)
	readStateKeys := sortedStates(readStates)

	var objs []string
	for o := range writeObjs {
		objs = append(objs, o)
	}
	sort.Strings(objs)

	var out []Indirect
	for _, o := range objs {
		var readTraces [][]reachability.Step
		for _, st := range readStateKeys {
			if reachability.Read(g, st, o) {
				readTraces = append(readTraces, readStates[st])
			}
		}
		if len(readTraces) == 0 {
			continue
		}
		out = append(out, Indirect{
			S1: s1, S2: s2, Target: target, Intermediate: o,
			WriteTraces: writeObjs[o], ReadTraces: readTraces,
		})
	}
	return out
}

// WriteExec is a finding that object can be both written and later
// executed along paths from a single entry point.
type WriteExec struct {
	Entry       rbacflow.State
	Object      string
	WriteTraces [][]reachability.Step
	ExecTraces  [][]reachability.Step
}

// WriteExecuteFlow computes, for entry, every object reachable-writable
// that is also reachable-executable from the same entry point.
func WriteExecuteFlow(g *graph.Graph, entry rbacflow.State) []WriteExec {
	states := reachability.ReachableStatesE(g, entry)
	keys := sortedStates(states)

	w := map[string][][]reachability.Step{}
	x := map[string][][]reachability.Step{}
	for _, st := range keys {
		trace := states[st]
		for _, o := range reachability.ObjectsWithWritePermissions(g, st) {
			w[o] = append(w[o], trace)
		}
		for _, o := range reachability.ObjectsWithExecPermissions(g, st) {
			x[o] = append(x[o], trace)
		}
	}

	var objs []string
	for o := range w {
		if _, ok := x[o]; ok {
			objs = append(objs, o)
		}
	}
	sort.Strings(objs)

	out := make([]WriteExec, 0, len(objs))
	for _, o := range objs {
		out = append(out, WriteExec{Entry: entry, Object: o, WriteTraces: w[o], ExecTraces: x[o]})
	}
	return out
}

func sortedStates(m map[rbacflow.State][]reachability.Step) []rbacflow.State {
	out := make([]rbacflow.State, 0, len(m))
	for s := range m {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return stateLess(out[i], out[j])
	})
	return out
}

func stateLess(a, b rbacflow.State) bool {
	if a.Special != b.Special {
		return a.Special < b.Special
	}
	if a.User != b.User {
		return a.User < b.User
	}
	if a.Group != b.Group {
		return a.Group < b.Group
	}
	return a.Subject < b.Subject
}
