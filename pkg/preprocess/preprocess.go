// Package preprocess expands a Grsecurity-style policy file into a single
// text buffer ready for pkg/lexparse: includes are inlined, comments and
// braces are stripped, replace/define macros are substituted, and the
// reserved-word and role_allow_ip rewrites described by the grammar are
// applied.
//
// The transform is textual and order-sensitive; see Run for the exact
// sequence. Nothing here understands policy grammar beyond what is needed
// to find include/define/replace directives, so a malformed macro body is
// only caught once the result reaches the parser.
package preprocess

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pthm/rbacflow"
)

const grsecPrefix = "/etc/grsec"

var (
	includeRe = regexp.MustCompile(`(?m)^[ \t]*include[ \t]+(\S+)[ \t]*$`)
	replaceRe = regexp.MustCompile(`(?m)^[ \t]*replace[ \t]+(\S+)[ \t]+(.+?)[ \t]*$`)
	defineRe  = regexp.MustCompile(`(?s)define[ \t]+(\S+)[ \t]*\{(.*?)\}`)
	ipLineRe  = regexp.MustCompile(`(?m)^[ \t]*role_allow_ip\b.*$\n?`)
)

// Run preprocesses the policy rooted at path (a file or directory) and
// returns the fully expanded text buffer.
func Run(path string) (string, error) {
	buf, err := expandIncludes(path, path)
	if err != nil {
		return "", err
	}
	buf = stripComments(buf)
	buf = applyReplace(buf)
	buf = applyDefine(buf)
	buf = stripBraces(buf)
	buf = rewriteReserved(buf)
	buf = ipLineRe.ReplaceAllString(buf, "")
	return buf, nil
}

// expandIncludes recursively inlines `include <path>` directives. Relative
// includes found in a file are resolved against that file's own directory
// (filepath.Dir(path)), not against the root policy's directory; baseDir is
// not consulted.
func expandIncludes(path, baseDir string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: stat %s: %v", rbacflow.ErrIO, path, err)
	}
	if info.IsDir() {
		return expandDir(path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", rbacflow.ErrIO, path, err)
	}
	dir := filepath.Dir(path)
	return expandIncludesInText(string(raw), dir)
}

// expandDir concatenates the preprocessed content of every immediate
// directory entry, in lexicographic order for run-to-run stability, per
// the spec's "implementation-defined but stable" requirement.
func expandDir(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("%w: readdir %s: %v", rbacflow.ErrIO, dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		child := filepath.Join(dir, name)
		out, err := expandIncludes(child, dir)
		if err != nil {
			return "", err
		}
		sb.WriteString(out)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

func expandIncludesInText(text, dir string) (string, error) {
	var outerErr error
	result := includeRe.ReplaceAllStringFunc(text, func(line string) string {
		if outerErr != nil {
			return ""
		}
		m := includeRe.FindStringSubmatch(line)
		target := m[1]
		target = strings.TrimPrefix(target, grsecPrefix)
		var resolved string
		if filepath.IsAbs(target) {
			resolved = target
		} else {
			resolved = filepath.Join(dir, target)
		}
		out, err := expandIncludes(resolved, dir)
		if err != nil {
			outerErr = err
			return ""
		}
		return out
	})
	if outerErr != nil {
		return "", outerErr
	}
	return result, nil
}

func stripComments(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			lines[i] = line[:idx]
		}
	}
	return strings.Join(lines, "\n")
}

func applyReplace(text string) string {
	for {
		m := replaceRe.FindStringSubmatchIndex(text)
		if m == nil {
			return text
		}
		name := text[m[2]:m[3]]
		value := text[m[4]:m[5]]
		decl := text[m[0]:m[1]]
		text = strings.ReplaceAll(text, decl, "")
		text = strings.ReplaceAll(text, "$("+name+")", value)
	}
}

func applyDefine(text string) string {
	for {
		m := defineRe.FindStringSubmatchIndex(text)
		if m == nil {
			return text
		}
		name := text[m[2]:m[3]]
		body := text[m[4]:m[5]]
		decl := text[m[0]:m[1]]
		text = strings.Replace(text, decl, "", 1)
		text = strings.ReplaceAll(text, "$"+name, body)
	}
}

func stripBraces(text string) string {
	return strings.NewReplacer("{", "", "}", "").Replace(text)
}

var reservedLineRe = regexp.MustCompile(`(?m)^([ \t]*)(connect|bind)\b`)

func rewriteReserved(text string) string {
	return reservedLineRe.ReplaceAllString(text, "${1}${2}_reserved")
}
