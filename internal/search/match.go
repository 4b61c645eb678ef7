// Package search implements find/replace over plain-text document content.
//
// Matching uses ECMAScript regular expression semantics. Offsets are in
// runes so they line up with what the user sees as characters.
package search

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

const matchTimeout = 2 * time.Second

var ErrEmptyQuery = errors.New("empty query")

type Options struct {
	MatchCase      bool
	MatchWholeWord bool
	UseRegex       bool
}

// Match is a position within the content snapshot the search ran against.
// Line and Column are 1-based.
type Match struct {
	Start  int
	Length int
	Line   int
	Column int
}

func (m Match) End() int {
	return m.Start + m.Length
}

// Matcher is a compiled query.
type Matcher struct {
	re   *regexp2.Regexp
	opts Options
}

// Pattern builds the regular expression source for query under opts.
func Pattern(query string, opts Options) string {
	pattern := query
	if !opts.UseRegex {
		pattern = escape(query)
	}
	if opts.MatchWholeWord {
		pattern = `\b` + pattern + `\b`
	}
	return pattern
}

func Compile(query string, opts Options) (*Matcher, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}

	flags := regexp2.RegexOptions(regexp2.ECMAScript)
	if !opts.MatchCase {
		flags |= regexp2.IgnoreCase
	}

	re, err := regexp2.Compile(Pattern(query, opts), flags)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", query, err)
	}
	re.MatchTimeout = matchTimeout

	return &Matcher{re: re, opts: opts}, nil
}

// each calls fn for every non-overlapping match in text, left to right.
// A zero-length match moves the scan forward by one rune.
func (m *Matcher) each(text []rune, fn func(*regexp2.Match) bool) error {
	pos := 0
	for pos <= len(text) {
		match, err := m.re.FindRunesMatchStartingAt(text, pos)
		if err != nil {
			return err
		}
		if match == nil {
			return nil
		}
		if !fn(match) {
			return nil
		}
		if match.Length == 0 {
			pos = match.Index + 1
		} else {
			pos = match.Index + match.Length
		}
	}
	return nil
}

// Find returns every match in text. A scan that fails part way (match
// timeout) returns the matches collected so far.
func (m *Matcher) Find(text []rune) []Match {
	var (
		results []Match
		line    = 1
		column  = 1
		scanned = 0
	)

	_ = m.each(text, func(match *regexp2.Match) bool {
		for ; scanned < match.Index; scanned++ {
			if text[scanned] == '\n' {
				line++
				column = 1
			} else {
				column++
			}
		}
		results = append(results, Match{
			Start:  match.Index,
			Length: match.Length,
			Line:   line,
			Column: column,
		})
		return true
	})

	return results
}

// MatchAt returns the match that begins exactly at start, if any.
func (m *Matcher) MatchAt(text []rune, start int) (*regexp2.Match, bool) {
	if start < 0 || start > len(text) {
		return nil, false
	}
	match, err := m.re.FindRunesMatchStartingAt(text, start)
	if err != nil || match == nil || match.Index != start {
		return nil, false
	}
	return match, true
}

// expand returns the text that replaces match. Substitutions ($&, $1, $<name>,
// $`, $', $$) only apply to regex queries.
func (m *Matcher) expand(text []rune, match *regexp2.Match, replacement string) string {
	if !m.opts.UseRegex || !strings.Contains(replacement, "$") {
		return replacement
	}

	var b strings.Builder
	r := []rune(replacement)
	for i := 0; i < len(r); i++ {
		if r[i] != '$' || i+1 >= len(r) {
			b.WriteRune(r[i])
			continue
		}

		next := r[i+1]
		switch {
		case next == '$':
			b.WriteRune('$')
			i++
		case next == '&':
			b.WriteString(match.String())
			i++
		case next == '`':
			b.WriteString(string(text[:match.Index]))
			i++
		case next == '\'':
			b.WriteString(string(text[match.Index+match.Length:]))
			i++
		case next >= '0' && next <= '9':
			n, width := groupNumber(r[i+1:], match.GroupCount())
			if n == 0 {
				b.WriteRune(r[i])
				continue
			}
			if g := match.GroupByNumber(n); g != nil && len(g.Captures) > 0 {
				b.WriteString(g.String())
			}
			i += width
		case next == '<':
			end := indexRune(r[i+2:], '>')
			if end < 0 {
				b.WriteRune(r[i])
				continue
			}
			name := string(r[i+2 : i+2+end])
			if g := match.GroupByName(name); g != nil && len(g.Captures) > 0 {
				b.WriteString(g.String())
			}
			i += end + 2
		default:
			b.WriteRune(r[i])
		}
	}
	return b.String()
}

// groupNumber parses a one or two digit group reference, preferring the
// longest reference that names an existing group.
func groupNumber(r []rune, groupCount int) (int, int) {
	if len(r) >= 2 && r[1] >= '0' && r[1] <= '9' {
		if n, err := strconv.Atoi(string(r[:2])); err == nil && n > 0 && n < groupCount {
			return n, 2
		}
	}
	n := int(r[0] - '0')
	if n > 0 && n < groupCount {
		return n, 1
	}
	return 0, 0
}

func indexRune(r []rune, target rune) int {
	for i, c := range r {
		if c == target {
			return i
		}
	}
	return -1
}

// escape makes every regex metacharacter in s literal.
func escape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '.', '*', '+', '?', '^', '$', '{', '}', '(', ')', '|', '[', ']', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FindAll returns every match of query in content. An empty query or a
// malformed pattern yields no matches.
func FindAll(content, query string, opts Options) []Match {
	m, err := Compile(query, opts)
	if err != nil {
		return nil
	}
	return m.Find([]rune(content))
}

// ReplaceAt replaces the match at target.Start. The match is recomputed at
// that offset; it reports false and leaves content unchanged when the query
// no longer matches there.
func ReplaceAt(content, query, replacement string, opts Options, target Match) (string, bool) {
	text := []rune(content)
	if target.Start < 0 || target.Start > len(text) || target.Length < 0 {
		return content, false
	}

	m, err := Compile(query, opts)
	if err != nil {
		return content, false
	}
	match, ok := m.MatchAt(text, target.Start)
	if !ok {
		return content, false
	}

	var b strings.Builder
	b.WriteString(string(text[:target.Start]))
	b.WriteString(m.expand(text, match, replacement))
	b.WriteString(string(text[match.Index+match.Length:]))
	return b.String(), true
}

// ReplaceAll substitutes every match in a single left-to-right pass and
// returns the new content with the number of replacements.
func ReplaceAll(content, query, replacement string, opts Options) (string, int) {
	m, err := Compile(query, opts)
	if err != nil {
		return content, 0
	}

	text := []rune(content)
	var (
		b     strings.Builder
		prev  int
		count int
	)
	err = m.each(text, func(match *regexp2.Match) bool {
		b.WriteString(string(text[prev:match.Index]))
		b.WriteString(m.expand(text, match, replacement))
		prev = match.Index + match.Length
		count++
		return true
	})
	if err != nil {
		return content, 0
	}
	b.WriteString(string(text[prev:]))
	return b.String(), count
}
