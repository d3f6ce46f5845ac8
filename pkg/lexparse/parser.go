// Package lexparse tokenises a preprocessed policy buffer (see
// pkg/preprocess) and parses it into the pkg/policy abstract syntax tree.
//
// Grammar. After preprocessing strips braces, a policy is a flat sequence
// of statement lines. A "role" or "domain" line opens a role declaration
// that runs until the next role/domain line or end of input. Within a
// role, a "subject" line opens a subject block that runs until the next
// subject/role/domain line. Lines inside a subject block are, in order of
// recognition: transition-policy clauses, capability deltas, and object
// declarations (a path followed by a permission string). Recursive-descent
// here means each of these shapes is recognised by its own small
// statement parser (parseRoleHeader, parseSubjectHeader, parseObjectOrCap, ...) rather
// than one large switch.
package lexparse

import (
	"fmt"
	"strings"

	"github.com/pthm/rbacflow"
	"github.com/pthm/rbacflow/internal/diag"
	"github.com/pthm/rbacflow/pkg/policy"
)

// Options controls parser behavior beyond the grammar itself.
type Options struct {
	// Strict promotes a subject carrying more than one
	// user_transition_* clause, or more than one group_transition_*
	// clause (spec section 9's recorded conflict-precedence ambiguity),
	// from a last-clause-wins overwrite with a diag warning to a
	// ParseError.
	Strict bool
}

// Parse lexes and parses a preprocessed policy buffer into a Policy, taking
// the last-parsed user/group transition clause on a conflict.
func Parse(text string) (*policy.Policy, error) {
	return ParseWithOptions(text, Options{})
}

// ParseWithOptions is Parse with explicit Options.
func ParseWithOptions(text string, opts Options) (*policy.Policy, error) {
	lines := Lex(text)
	p := &parser{lines: lines, opts: opts}
	return p.run()
}

type parser struct {
	lines []Line
	pos   int
	opts  Options

	pol     policy.Policy
	curRole *policy.Role
	curSubj *policy.Subject

	sawUserTrans  bool
	sawGroupTrans bool
}

func (p *parser) run() (*policy.Policy, error) {
	for p.pos < len(p.lines) {
		line := p.lines[p.pos]
		kw := keywordOf(line)
		switch kw {
		case "role", "domain":
			if err := p.parseRoleHeader(line, kw == "domain"); err != nil {
				return nil, err
			}
		case "role_transitions":
			if err := p.parseRoleTransitions(line); err != nil {
				return nil, err
			}
		case "subject":
			if err := p.parseSubjectHeader(line); err != nil {
				return nil, err
			}
		case "user_transition_allow", "user_transition_deny":
			if err := p.parseTransitionClause(line, true); err != nil {
				return nil, err
			}
		case "group_transition_allow", "group_transition_deny":
			if err := p.parseTransitionClause(line, false); err != nil {
				return nil, err
			}
		case "ip_override", "connect_reserved", "bind_reserved",
			"disabled", "sock_allow_family":
			// IP-ACL and resource-limit machinery: recognised so the
			// parser does not mistake these lines for object
			// declarations, discarded per spec section 9's recorded gap.
		default:
			if err := p.parseObjectOrCap(line); err != nil {
				return nil, err
			}
		}
		p.pos++
	}
	p.flushSubject()
	p.flushRole()
	return &p.pol, nil
}

func keywordOf(l Line) string {
	if len(l.Tokens) == 0 {
		return ""
	}
	t := l.Tokens[0]
	if t.Kind == TokKeyword {
		return t.Text
	}
	return ""
}

func (p *parser) flushSubject() {
	if p.curSubj != nil && p.curRole != nil {
		p.curRole.Subjects = append(p.curRole.Subjects, *p.curSubj)
		p.curSubj = nil
	}
}

func (p *parser) flushRole() {
	p.flushSubject()
	if p.curRole != nil {
		p.pol.Roles = append(p.pol.Roles, *p.curRole)
		p.curRole = nil
	}
}

// parseRoleHeader handles "role NAME [FLAGS]" and "domain NAME1 NAME2 ... [FLAGS]".
// Any token, in any position, made of at most four characters drawn from
// {s,u,g,d,A} is read as flags; every other token is part of the name list.
func (p *parser) parseRoleHeader(line Line, isDomain bool) error {
	p.flushRole()
	toks := line.Tokens[1:]
	if len(toks) == 0 {
		return &rbacflow.ParseError{Line: line.Number, Msg: "role/domain with no name"}
	}
	names := make([]string, 0, len(toks))
	kind := rbacflow.KindSpecial
	admin := false
	for _, t := range toks {
		if isFlagsToken(t.Text) {
			for _, c := range t.Text {
				switch c {
				case 's':
					kind = rbacflow.KindSpecial
				case 'u':
					kind = rbacflow.KindUser
				case 'g':
					kind = rbacflow.KindGroup
				case 'd':
					kind = rbacflow.KindDefault
				case 'A':
					admin = true
				}
			}
			continue
		}
		names = append(names, t.Text)
	}
	if len(names) == 0 {
		return &rbacflow.ParseError{Line: line.Number, Msg: "role/domain with no name"}
	}
	r := &policy.Role{Kind: kind, Admin: admin}
	if names[0] == rbacflow.DefaultRoleName && len(names) == 1 {
		r.Kind = rbacflow.KindDefault
	}
	if isDomain {
		r.DomainUsers = names
	} else {
		if len(names) != 1 {
			return &rbacflow.ParseError{Line: line.Number, Msg: "role declares more than one name"}
		}
		r.Name = names[0]
	}
	p.curRole = r
	return nil
}

func isFlagsToken(s string) bool {
	if s == "" || len(s) > 4 {
		return false
	}
	for _, c := range s {
		switch c {
		case 's', 'u', 'g', 'd', 'A':
		default:
			return false
		}
	}
	return true
}

func (p *parser) parseRoleTransitions(line Line) error {
	if p.curRole == nil {
		return &rbacflow.ParseError{Line: line.Number, Msg: "role_transitions outside a role"}
	}
	for _, t := range line.Tokens[1:] {
		p.curRole.Transitions = append(p.curRole.Transitions, t.Text)
	}
	return nil
}

func (p *parser) parseSubjectHeader(line Line) error {
	if p.curRole == nil {
		return &rbacflow.ParseError{Line: line.Number, Msg: "subject outside a role"}
	}
	p.flushSubject()
	p.sawUserTrans = false
	p.sawGroupTrans = false
	toks := line.Tokens[1:]
	if len(toks) == 0 {
		return &rbacflow.ParseError{Line: line.Number, Msg: "subject with no path"}
	}
	path := toks[0].Text
	if strings.Contains(path, ":") && !isIPPort(path) {
		return fmt.Errorf("%w: %w", rbacflow.ErrUnsupportedConstruct, &rbacflow.ParseError{Line: line.Number, Msg: fmt.Sprintf(
			"nested subject path %q is not supported", path)})
	}
	subj := &policy.Subject{Path: path}
	if len(toks) > 1 {
		raw := toks[1].Text
		subj.Mode = policy.Mode{Raw: raw, Override: strings.Contains(raw, "o")}
	}
	p.curSubj = subj
	return nil
}

// parseTransitionClause parses a user_transition_*/group_transition_*
// clause. A subject carrying more than one clause of the same kind is the
// conflict the grammar leaves unresolved (spec.md section 9): the last one
// parsed wins, as it does in the source grammar this is modeled on, and the
// conflict is surfaced as a diag warning unless Options.Strict asks for a
// hard ParseError instead.
func (p *parser) parseTransitionClause(line Line, isUser bool) error {
	if p.curSubj == nil {
		return &rbacflow.ParseError{Line: line.Number, Msg: "transition clause outside a subject"}
	}
	kw := keywordOf(line)
	kind := policy.PolicyAllow
	if strings.HasSuffix(kw, "deny") {
		kind = policy.PolicyDeny
	}

	already := p.sawUserTrans
	label := "user_transition"
	if !isUser {
		already = p.sawGroupTrans
		label = "group_transition"
	}
	if already {
		msg := fmt.Sprintf("subject %q already has a %s clause; overwriting with the later one", p.curSubj.Path, label)
		if p.opts.Strict {
			return &rbacflow.ParseError{Line: line.Number, Msg: msg}
		}
		diag.Logger.Warnf("line %d: %s", line.Number, msg)
	}
	if isUser {
		p.sawUserTrans = true
	} else {
		p.sawGroupTrans = true
	}

	var roles []string
	for _, t := range line.Tokens[1:] {
		roles = append(roles, t.Text)
	}
	tp := policy.TransitionPolicy{Kind: kind, Roles: roles}
	if isUser {
		p.curSubj.UserTrans = tp
	} else {
		p.curSubj.GroupTrans = tp
	}
	return nil
}

func (p *parser) parseObjectOrCap(line Line) error {
	if p.curSubj == nil {
		// Lines before any subject (e.g. stray tokens) are ignored rather
		// than treated as a fatal error, matching the preprocessor's
		// tolerance of blank structural lines.
		return nil
	}
	first := line.Tokens[0]
	switch first.Kind {
	case TokCapDelta, TokPax, TokRes:
		for _, t := range line.Tokens {
			switch t.Kind {
			case TokCapDelta:
				delta, tracked, err := parseCapDelta(t.Text, line.Number)
				if err != nil {
					return err
				}
				if tracked {
					p.curSubj.Capabilities = append(p.curSubj.Capabilities, delta)
				}
			case TokPax, TokRes, TokNumberLimit:
				// parsed, semantically discarded per spec section 3.
			}
		}
		return nil
	case TokPath:
		if len(line.Tokens) < 2 {
			return &rbacflow.ParseError{Line: line.Number, Msg: "object declaration missing permission string"}
		}
		p.curSubj.Objects = append(p.curSubj.Objects, policy.Object{
			Path:       first.Text,
			Permission: line.Tokens[1].Text,
		})
		return nil
	default:
		// Unrecognised identifier-only line (e.g. a resource-limit name
		// without our classifier catching it): ignore rather than fail,
		// consistent with the tolerant treatment of out-of-scope clauses.
		return nil
	}
}

// parseCapDelta parses one "+CAP_X"/"-CAP_X" token. tracked reports
// whether the capability falls inside the universe this analyser cares
// about ({CAP_SETUID, CAP_SETGID} plus the CAP_ALL wildcard); untracked
// capabilities are valid syntax but contribute nothing to any effective
// set, so the caller drops them rather than keeping dead entries.
func parseCapDelta(tok string, line int) (delta policy.CapDelta, tracked bool, err error) {
	if len(tok) < 2 {
		return policy.CapDelta{}, false, &rbacflow.ParseError{Line: line, Msg: "malformed capability token " + tok}
	}
	add := tok[0] == '+'
	name := tok[1:]
	switch name {
	case "CAP_ALL":
		return policy.CapDelta{Add: add, CapAll: true}, true, nil
	case "CAP_SETUID":
		return policy.CapDelta{Add: add, Cap: rbacflow.CapSetUID}, true, nil
	case "CAP_SETGID":
		return policy.CapDelta{Add: add, Cap: rbacflow.CapSetGID}, true, nil
	default:
		return policy.CapDelta{}, false, nil
	}
}
