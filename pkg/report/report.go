// Package report converts flow-analyser results into a flat Finding list
// and renders or exports them: plain/coloured text for a terminal (via
// internal/render), or YAML/JSON for machine consumption (via
// sigs.k8s.io/yaml, which marshals through the same struct tags as
// encoding/json so one Finding definition serves both formats).
package report

import (
	"encoding/json"
	"fmt"

	"sigs.k8s.io/yaml"

	"github.com/pthm/rbacflow"
	"github.com/pthm/rbacflow/internal/flow"
	"github.com/pthm/rbacflow/internal/reachability"
	"github.com/pthm/rbacflow/internal/render"
)

// Kind distinguishes the four finding shapes a scan can produce.
type Kind string

const (
	KindDirectRead   Kind = "direct-read"
	KindDirectWrite  Kind = "direct-write"
	KindIndirect     Kind = "indirect"
	KindWriteExecute Kind = "write-execute"
)

// Finding is the flat, exportable shape every analyser result is
// converted to.
type Finding struct {
	Kind         Kind     `json:"kind"`
	Entry        string   `json:"entry"`
	Entry2       string   `json:"entry2,omitempty"`
	Target       string   `json:"target,omitempty"`
	Intermediate string   `json:"intermediate,omitempty"`
	Object       string   `json:"object,omitempty"`
	State        string   `json:"state,omitempty"`
	Traces       []string `json:"traces,omitempty"`
}

// FromDirect converts direct-flow results using r to render states/traces.
func FromDirect(r *render.Renderer, results []flow.Direct) []Finding {
	out := make([]Finding, 0, len(results))
	for _, d := range results {
		k := KindDirectRead
		if d.Mode == flow.ModeWrite {
			k = KindDirectWrite
		}
		out = append(out, Finding{
			Kind:   k,
			Entry:  r.State(d.Entry),
			Target: d.Target,
			State:  r.State(d.At),
			Traces: []string{r.Trace(d.At, d.Trace)},
		})
	}
	return out
}

// FromIndirect converts indirect-flow results.
func FromIndirect(r *render.Renderer, results []flow.Indirect) []Finding {
	out := make([]Finding, 0, len(results))
	for _, ind := range results {
		out = append(out, Finding{
			Kind:         KindIndirect,
			Entry:        r.State(ind.S1),
			Entry2:       r.State(ind.S2),
			Target:       ind.Target,
			Intermediate: ind.Intermediate,
			Traces:       append(renderTraces(r, ind.Intermediate, ind.WriteTraces), renderTraces(r, ind.Intermediate, ind.ReadTraces)...),
		})
	}
	return out
}

// FromWriteExecute converts write-execute findings.
func FromWriteExecute(r *render.Renderer, results []flow.WriteExec) []Finding {
	out := make([]Finding, 0, len(results))
	for _, we := range results {
		out = append(out, Finding{
			Kind:   KindWriteExecute,
			Entry:  r.State(we.Entry),
			Object: we.Object,
			Traces: append(renderTracesTo(r, we.Entry, we.WriteTraces), renderTracesTo(r, we.Entry, we.ExecTraces)...),
		})
	}
	return out
}

func renderTraces(r *render.Renderer, _ string, traces [][]reachability.Step) []string {
	out := make([]string, 0, len(traces))
	for _, t := range traces {
		if len(t) == 0 {
			continue
		}
		out = append(out, r.Trace(t[len(t)-1].From, t))
	}
	return out
}

func renderTracesTo(r *render.Renderer, final rbacflow.State, traces [][]reachability.Step) []string {
	out := make([]string, 0, len(traces))
	for _, t := range traces {
		out = append(out, r.Trace(final, t))
	}
	return out
}

// Text renders findings as one line per finding, in the plain arrow form.
func Text(findings []Finding) string {
	var out string
	for _, f := range findings {
		line := fmt.Sprintf("[%s] %s", f.Kind, describe(f))
		for _, tr := range f.Traces {
			line += " | " + tr
		}
		out += line + "\n"
	}
	return out
}

func describe(f Finding) string {
	switch f.Kind {
	case KindDirectRead, KindDirectWrite:
		return fmt.Sprintf("%s reaches %s over target %s", f.Entry, f.State, f.Target)
	case KindIndirect:
		return fmt.Sprintf("%s writes %s, read back from %s over target %s", f.Entry, f.Intermediate, f.Entry2, f.Target)
	case KindWriteExecute:
		return fmt.Sprintf("%s can write and exec %s", f.Entry, f.Object)
	default:
		return ""
	}
}

// YAML marshals findings to YAML.
func YAML(findings []Finding) ([]byte, error) {
	return yaml.Marshal(findings)
}

// JSON marshals findings to JSON via the same struct tags YAML uses.
func JSON(findings []Finding) ([]byte, error) {
	return json.MarshalIndent(findings, "", "  ")
}
