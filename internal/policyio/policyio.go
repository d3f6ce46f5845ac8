// Package policyio reads the external file formats the CLI layer (outside
// the analysis core) is responsible for: entry-points files, targets
// files, and learn-config extraction, per this analyser's external
// interfaces.
package policyio

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/pthm/rbacflow"
)

// EntryLine is one parsed line of an entry-points file: always a starting
// state, and for an indirect-flow configuration also a second state and a
// target path.
type EntryLine struct {
	Start  rbacflow.State
	End    *rbacflow.State
	Target string
}

// ParseEntryPoints reads "<stateA> [<stateB> <target>]" records, one per
// line; blank and '#'-comment lines are ignored.
func ParseEntryPoints(path string) ([]EntryLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", rbacflow.ErrIO, path, err)
	}
	defer f.Close()

	var out []EntryLine
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		start, err := ParseState(fields[0])
		if err != nil {
			return nil, err
		}
		el := EntryLine{Start: start}
		if len(fields) >= 3 {
			end, err := ParseState(fields[1])
			if err != nil {
				return nil, err
			}
			el.End = &end
			el.Target = fields[2]
		}
		out = append(out, el)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", rbacflow.ErrIO, path, err)
	}
	return out, nil
}

// ParseState parses "<role_name>:<type>:<subject>" where type is one of
// S, U, G, D placing role_name in the special/user/group/(default) slot.
func ParseState(s string) (rbacflow.State, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return rbacflow.State{}, &rbacflow.ParseError{Msg: "malformed state " + s}
	}
	role, kind, subject := parts[0], parts[1], parts[2]
	st := rbacflow.State{Special: rbacflow.DontCare, User: rbacflow.DontCare, Group: rbacflow.DontCare, Subject: subject}
	switch kind {
	case "S":
		st.Special = role
	case "U":
		st.User = role
	case "G":
		st.Group = role
	case "D":
		// default slot: all three stay DontCare regardless of role name.
	default:
		return rbacflow.State{}, &rbacflow.ParseError{Msg: "unknown state type " + kind + " in " + s}
	}
	return st, nil
}

// ParseTargets reads one path per line; blank and '#'-comment lines are
// ignored.
func ParseTargets(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", rbacflow.ErrIO, path, err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", rbacflow.ErrIO, path, err)
	}
	return out, nil
}

// ParseLearnConfig extracts targets as every path following a
// "read-protected-path" or "high-protected-path" keyword on a line.
func ParseLearnConfig(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", rbacflow.ErrIO, path, err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		for i, f := range fields {
			if (f == "read-protected-path" || f == "high-protected-path") && i+1 < len(fields) {
				out = append(out, fields[i+1])
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", rbacflow.ErrIO, path, err)
	}
	return out, nil
}
