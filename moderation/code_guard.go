package moderation

import (
	"cad-lab/errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/samber/lo"
)

// DefaultForbiddenCalls are the script calls the executor refuses to run.
var DefaultForbiddenCalls = []string{
	"os.system",
	"os.popen",
	"os.remove",
	"os.rmdir",
	"subprocess",
	"shutil.rmtree",
	"eval(",
	"exec(",
	"__import__",
	"socket.",
}

// CodeGuard scans generated scripts for forbidden calls.
type CodeGuard struct {
	matcher  *goahocorasick.Machine
	patterns int
}

// NewCodeGuard builds the Aho-Corasick automaton over the lower-cased patterns.
// Blank patterns are ignored.
func NewCodeGuard(patterns []string) (*CodeGuard, error) {
	cleaned := lo.Uniq(lo.FilterMap(patterns, func(p string, _ int) (string, bool) {
		p = strings.ToLower(strings.TrimSpace(p))
		return p, p != ""
	}))
	if len(cleaned) == 0 {
		return &CodeGuard{}, nil
	}

	runes := make([][]rune, len(cleaned))
	for i, p := range cleaned {
		runes[i] = []rune(p)
	}
	m := new(goahocorasick.Machine)
	if err := m.Build(runes); err != nil {
		return nil, fmt.Errorf("building code guard: %w", err)
	}
	return &CodeGuard{matcher: m, patterns: len(cleaned)}, nil
}

// Scan returns the distinct patterns found in code, in order of first appearance.
func (g *CodeGuard) Scan(code string) []string {
	if g.matcher == nil || code == "" {
		return nil
	}
	spans := g.matcher.MultiPatternSearch(normalize(code), false)
	if len(spans) == 0 {
		return nil
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].Pos < spans[j].Pos })

	var found []string
	for _, span := range spans {
		found = append(found, string(span.Word))
	}
	return lo.Uniq(found)
}

// Check fails with ErrForbiddenCode when the script contains a forbidden call.
func (g *CodeGuard) Check(code string) error {
	if found := g.Scan(code); len(found) > 0 {
		return fmt.Errorf("%w: %s", errors.ErrForbiddenCode, strings.Join(found, ", "))
	}
	return nil
}

// normalize lower-cases the script. Positions are kept one to one.
func normalize(code string) []rune {
	out := []rune(code)
	for i, r := range out {
		out[i] = unicode.ToLower(r)
	}
	return out
}
