// Package analysis wires the pipeline stages — preprocessing, parsing,
// domain expansion, permission building, inheritance closure, and
// transition-graph construction — into a single Build entry point, then
// exposes the flow analysers over the result.
package analysis

import (
	"github.com/pthm/rbacflow/internal/builder"
	"github.com/pthm/rbacflow/internal/closure"
	"github.com/pthm/rbacflow/internal/expand"
	"github.com/pthm/rbacflow/internal/flow"
	"github.com/pthm/rbacflow/internal/graph"
	"github.com/pthm/rbacflow/pkg/lexparse"
	"github.com/pthm/rbacflow/pkg/policy"
	"github.com/pthm/rbacflow/pkg/preprocess"

	"github.com/pthm/rbacflow"
)

// Options controls the whole pipeline: graph construction (whether
// administrative roles stay blacklisted and whether exec is modelled in
// best-case, no set-UID/GID-binaries mode) plus parser strictness.
type Options struct {
	graph.Options

	// StrictTransitions turns a subject carrying more than one
	// user_transition_*/group_transition_* clause into a fatal parse
	// error instead of a diag warning.
	StrictTransitions bool
}

// Analysis is the fully built, read-only result of compiling one policy:
// its AST, its permission/capability tables, and its transition graph.
// Every exported method is safe to call concurrently once Build returns,
// since nothing here mutates after construction.
type Analysis struct {
	Policy    *policy.Policy
	Tables    *builder.Tables
	Graph     *graph.Graph
	Processed string
}

// Build runs the full pipeline over the policy rooted at path.
func Build(path string, opts Options) (*Analysis, error) {
	text, err := preprocess.Run(path)
	if err != nil {
		return nil, err
	}
	pol, err := lexparse.ParseWithOptions(text, lexparse.Options{Strict: opts.StrictTransitions})
	if err != nil {
		return nil, err
	}
	pol = expand.Domains(pol)

	userRoles, groupRoles := roleKindSets(pol)
	tables := builder.Build(pol, userRoles, groupRoles)
	closure.Apply(pol, tables)
	g := graph.Build(pol, tables, opts.Options)

	return &Analysis{Policy: pol, Tables: tables, Graph: g, Processed: text}, nil
}

// Preprocess runs only the preprocessor, for callers implementing the
// -P/--processedpolicy dump.
func Preprocess(path string) (string, error) {
	return preprocess.Run(path)
}

func roleKindSets(pol *policy.Policy) (userRoles, groupRoles map[string]bool) {
	userRoles = map[string]bool{}
	groupRoles = map[string]bool{}
	for _, r := range pol.Roles {
		if r.IsDomain() {
			continue
		}
		switch r.Kind {
		case rbacflow.KindUser:
			userRoles[r.Name] = true
		case rbacflow.KindGroup:
			groupRoles[r.Name] = true
		}
	}
	return
}

// DirectFlow reports every state from which target is readable/writable,
// reachable from entry (or entry itself).
func (a *Analysis) DirectFlow(entry rbacflow.State, target string, mode flow.Mode) []flow.Direct {
	return flow.DirectFlow(a.Graph, entry, target, mode)
}

// IndirectFlow reports intermediate objects written from s1 after reading
// target and later read from some state reachable from s2.
func (a *Analysis) IndirectFlow(s1, s2 rbacflow.State, target string) []flow.Indirect {
	return flow.IndirectFlow(a.Graph, s1, s2, target)
}

// WriteExecuteFlow reports objects both writable and executable along
// paths from entry.
func (a *Analysis) WriteExecuteFlow(entry rbacflow.State) []flow.WriteExec {
	return flow.WriteExecuteFlow(a.Graph, entry)
}
