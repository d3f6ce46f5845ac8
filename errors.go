package rbacflow

import (
	"errors"
	"strconv"
)

// Sentinel errors every fatal diagnostic wraps with fmt.Errorf("%w: ...").
// Callers match on these with errors.Is rather than string comparison, the
// same shape the RBAC-policy tooling in this module's ancestry uses for its
// own mapped driver errors.
var (
	// ErrIO indicates a referenced file could not be opened or read.
	ErrIO = errors.New("rbacflow: io error")
	// ErrParse indicates a syntax violation or unsupported construct.
	ErrParse = errors.New("rbacflow: parse error")
	// ErrUnsupportedConstruct indicates a construct the grammar recognises
	// but explicitly refuses to compile, such as a nested subject path.
	ErrUnsupportedConstruct = errors.New("rbacflow: unsupported construct")
	// ErrSemantic indicates match was invoked on a subject with no
	// matching object path for its role.
	ErrSemantic = errors.New("rbacflow: semantic error")
)

// ParseError carries positional context for a parse failure.
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return e.File + ":" + strconv.Itoa(e.Line) + ": " + e.Msg
	}
	return e.Msg
}

func (e *ParseError) Unwrap() error { return ErrParse }

// SemanticError carries the role/subject context for a failed match.
type SemanticError struct {
	Role    string
	Subject string
	Msg     string
}

func (e *SemanticError) Error() string {
	return "role " + e.Role + ", subject " + e.Subject + ": " + e.Msg
}

func (e *SemanticError) Unwrap() error { return ErrSemantic }
