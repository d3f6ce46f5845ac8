// Package render formats states and traces for the terminal: a plain
// "special:KIND:subject" form with alternating "-label->" arrows per the
// stdout rendering rule, optionally colourised with lipgloss when writing
// to a TTY. Colour is purely cosmetic — the plain-text form is always
// what a non-TTY sink receives, so scripts piping rbacflow's output see
// the same bytes this package would produce with colour disabled.
package render

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pthm/rbacflow"
	"github.com/pthm/rbacflow/internal/reachability"
)

// Renderer formats states and traces, optionally in colour.
type Renderer struct {
	Color bool

	kindStyle  lipgloss.Style
	arrowStyle lipgloss.Style
}

// New returns a Renderer. When color is false every style is a no-op, so
// Render* output is byte-identical to the plain-text form.
func New(color bool) *Renderer {
	r := &Renderer{Color: color}
	if color {
		r.kindStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
		r.arrowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	}
	return r
}

// State renders "special:KIND:subject", with KIND highlighted when colour
// is enabled.
func (r *Renderer) State(s rbacflow.State) string {
	_, kind := rbacflow.EffectiveRole(s)
	k := kind.String()
	if r.Color {
		k = r.kindStyle.Render(k)
	}
	return s.Special + ":" + k + ":" + s.Subject
}

// Trace renders the full start-to-final path as alternating
// "state -label-> state" hops. An empty trace renders just final.
func (r *Renderer) Trace(final rbacflow.State, trace []reachability.Step) string {
	if len(trace) == 0 {
		return r.State(final)
	}
	var sb strings.Builder
	sb.WriteString(r.State(trace[0].From))
	for i, step := range trace {
		arrow := "-" + step.Label.String() + "->"
		if r.Color {
			arrow = r.arrowStyle.Render(arrow)
		}
		sb.WriteString(" ")
		sb.WriteString(arrow)
		sb.WriteString(" ")
		if i+1 < len(trace) {
			sb.WriteString(r.State(trace[i+1].From))
		} else {
			sb.WriteString(r.State(final))
		}
	}
	return sb.String()
}
