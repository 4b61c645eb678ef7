package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func starts(matches []Match) []int {
	out := make([]int, len(matches))
	for i, m := range matches {
		out[i] = m.Start
	}
	return out
}

func TestFindAllEmptyQuery(t *testing.T) {
	assert.Empty(t, FindAll("anything at all", "", Options{}))
	assert.Empty(t, FindAll("", "", Options{UseRegex: true}))
}

func TestFindAllWholeWord(t *testing.T) {
	got := FindAll("concatenate cat scatter", "cat", Options{MatchWholeWord: true})
	require.Len(t, got, 1)
	assert.Equal(t, 12, got[0].Start)
	assert.Equal(t, 3, got[0].Length)

	assert.Len(t, FindAll("concatenate cat scatter", "cat", Options{}), 3)
}

func TestFindAllMatchCase(t *testing.T) {
	got := FindAll("cat Cat CAT", "Cat", Options{MatchCase: true})
	require.Len(t, got, 1)
	assert.Equal(t, 4, got[0].Start)

	assert.Len(t, FindAll("cat Cat CAT", "Cat", Options{}), 3)
}

func TestCompileIgnoresCaseUnlessAsked(t *testing.T) {
	m, err := Compile("c[a]t", Options{UseRegex: true})
	require.NoError(t, err)
	_, ok := m.MatchAt([]rune("CAT"), 0)
	assert.True(t, ok)

	m, err = Compile("c[a]t", Options{UseRegex: true, MatchCase: true})
	require.NoError(t, err)
	_, ok = m.MatchAt([]rune("CAT"), 0)
	assert.False(t, ok)
}

func TestFindAllEscapesLiteralQueries(t *testing.T) {
	got := FindAll("a.b axb", "a.b", Options{})
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].Start)

	assert.Len(t, FindAll("a.b axb", "a.b", Options{UseRegex: true}), 2)
	assert.Len(t, FindAll("cost $5 (approx) [x]", "$5 (approx) [x]", Options{}), 1)
	assert.Len(t, FindAll(`C:\path\file`, `\path`, Options{}), 1)
}

func TestFindAllZeroWidthTerminates(t *testing.T) {
	got := FindAll("abc", "x*", Options{UseRegex: true})
	assert.Equal(t, []int{0, 1, 2, 3}, starts(got))
	for _, m := range got {
		assert.Zero(t, m.Length)
	}

	got = FindAll("", "^", Options{UseRegex: true})
	assert.Len(t, got, 1)
}

func TestFindAllNonOverlapping(t *testing.T) {
	assert.Equal(t, []int{0, 2}, starts(FindAll("aaaa", "aa", Options{})))
	assert.Equal(t, []int{0}, starts(FindAll("aaa", "aa", Options{})))
}

func TestFindAllMalformedRegex(t *testing.T) {
	assert.Empty(t, FindAll("a(b", "(", Options{UseRegex: true}))
	assert.Empty(t, FindAll("abc", "[a-", Options{UseRegex: true}))

	_, err := Compile("(", Options{UseRegex: true})
	assert.Error(t, err)
	_, err = Compile("", Options{})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestFindAllLineAndColumn(t *testing.T) {
	got := FindAll("one\ntwo foo\nfoo", "foo", Options{})
	require.Len(t, got, 2)

	assert.Equal(t, Match{Start: 8, Length: 3, Line: 2, Column: 5}, got[0])
	assert.Equal(t, Match{Start: 12, Length: 3, Line: 3, Column: 1}, got[1])
}

func TestFindAllRuneOffsets(t *testing.T) {
	content := "héllo wörld, wörld"
	got := FindAll(content, "wörld", Options{})
	require.Len(t, got, 2)
	assert.Equal(t, 6, got[0].Start)
	assert.Equal(t, 5, got[0].Length)

	for _, m := range got {
		assert.LessOrEqual(t, m.End(), len([]rune(content)))
	}
}

func TestReplaceAllScenario(t *testing.T) {
	out, n := ReplaceAll("The quick fox. The lazy fox.", "fox", "dog", Options{})
	assert.Equal(t, "The quick dog. The lazy dog.", out)
	assert.Equal(t, 2, n)
}

func TestReplaceAllZeroWidth(t *testing.T) {
	out, n := ReplaceAll("abc", "x*", "-", Options{UseRegex: true})
	assert.Equal(t, "-a-b-c-", out)
	assert.Equal(t, 4, n)
}

func TestReplaceAllNoMatchOrBadPattern(t *testing.T) {
	out, n := ReplaceAll("abc", "z", "y", Options{})
	assert.Equal(t, "abc", out)
	assert.Zero(t, n)

	out, n = ReplaceAll("abc", "(", "y", Options{UseRegex: true})
	assert.Equal(t, "abc", out)
	assert.Zero(t, n)
}

func TestReplacementExpansion(t *testing.T) {
	out, _ := ReplaceAll("John Smith", `(\w+) (\w+)`, "$2, $1", Options{UseRegex: true})
	assert.Equal(t, "Smith, John", out)

	out, _ = ReplaceAll("price 5", `\d`, "[$&]$$", Options{UseRegex: true})
	assert.Equal(t, "price [5]$", out)

	out, _ = ReplaceAll("a-b", "-", "<$`|$'>", Options{UseRegex: true})
	assert.Equal(t, "a<a|b>b", out)

	out, _ = ReplaceAll("ab", "(a)", "$9", Options{UseRegex: true})
	assert.Equal(t, "$9b", out)

	out, _ = ReplaceAll("a b", "a", "$1 $&", Options{})
	assert.Equal(t, "$1 $& b", out)
}

func TestReplaceAtMatchesReplaceAllExpansion(t *testing.T) {
	opts := Options{UseRegex: true}
	content := "x=1, y=22"
	matches := FindAll(content, `(\w)=(\d+)`, opts)
	require.Len(t, matches, 2)

	out, ok := ReplaceAt(content, `(\w)=(\d+)`, "$2:$1", opts, matches[1])
	require.True(t, ok)
	assert.Equal(t, "x=1, 22:y", out)
}

func TestReplaceAtStaleOffset(t *testing.T) {
	out, ok := ReplaceAt("abc xyz", "foo", "bar", Options{}, Match{Start: 4, Length: 3})
	assert.False(t, ok, "a span that no longer matches is left alone")
	assert.Equal(t, "abc xyz", out)

	out, ok = ReplaceAt("foo bar", "foo", "x", Options{}, Match{Start: 1, Length: 3})
	assert.False(t, ok)
	assert.Equal(t, "foo bar", out)

	out, ok = ReplaceAt("abc", "abc", "z", Options{}, Match{Start: 10, Length: 3})
	assert.False(t, ok)
	assert.Equal(t, "abc", out)

	out, ok = ReplaceAt("abc", "bc", "z", Options{}, Match{Start: 1, Length: 10})
	require.True(t, ok)
	assert.Equal(t, "az", out)
}

// Replacing every match one at a time, first to last, against the original
// content must agree with a single ReplaceAll pass.
func TestReplaceAllEquivalentToSequentialReplace(t *testing.T) {
	cases := []struct {
		content, query, replacement string
		opts                        Options
	}{
		{"The quick fox. The lazy fox.", "fox", "dog", Options{}},
		{"aaaa", "aa", "b", Options{}},
		{"a a a", "a", "aa", Options{}},
		{"Foo foo FOO", "foo", "", Options{}},
		{"Foo foo FOO", "foo", "bar", Options{MatchCase: true}},
		{"cat concat cat", "cat", "dog", Options{MatchWholeWord: true}},
		{"a.b axb a.b", "a.b", "[$&]", Options{}},
		{"naïve naïve", "ï", "i", Options{}},
		{"no hits here", "zzz", "y", Options{}},
		{"line1\nline2\nline3", "line", "L", Options{}},
	}

	for _, tc := range cases {
		t.Run(tc.content+"/"+tc.query, func(t *testing.T) {
			want, _ := ReplaceAll(tc.content, tc.query, tc.replacement, tc.opts)

			got := tc.content
			delta := 0
			for _, m := range FindAll(tc.content, tc.query, tc.opts) {
				shifted := m
				shifted.Start += delta
				var ok bool
				got, ok = ReplaceAt(got, tc.query, tc.replacement, tc.opts, shifted)
				require.True(t, ok)
				delta += len([]rune(tc.replacement)) - m.Length
			}

			assert.Equal(t, want, got)
		})
	}
}

func TestPattern(t *testing.T) {
	assert.Equal(t, `a\.b`, Pattern("a.b", Options{}))
	assert.Equal(t, `\ba.b\b`, Pattern("a.b", Options{UseRegex: true, MatchWholeWord: true}))
}
