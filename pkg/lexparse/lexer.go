package lexparse

import "strings"

// Line is one lexed source line: its 1-based line number and the classified
// tokens for its whitespace-separated fields. Blank lines (after
// preprocessing's comment/brace stripping) are omitted by Lex.
type Line struct {
	Number int
	Tokens []Token
}

// Lex splits a preprocessed policy buffer into non-blank lines of
// classified tokens. It performs no grammar validation; that is the
// Parser's job.
func Lex(text string) []Line {
	rawLines := strings.Split(text, "\n")
	out := make([]Line, 0, len(rawLines))
	for i, raw := range rawLines {
		fields := strings.Fields(raw)
		if len(fields) == 0 {
			continue
		}
		lineNo := i + 1
		toks := make([]Token, 0, len(fields))
		for _, f := range fields {
			toks = append(toks, classify(f, lineNo))
		}
		out = append(out, Line{Number: lineNo, Tokens: toks})
	}
	return out
}
