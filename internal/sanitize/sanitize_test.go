package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestText_EmptyInput(t *testing.T) {
	assert.Equal(t, "", Text("", 100))
	assert.Equal(t, "", Text("   \n\t  ", 100))
}

func TestText_StripsControlCharacters(t *testing.T) {
	got := Text("hello\x00wor\x1bld", 100)
	assert.Equal(t, "helloworld", got)
}

func TestText_PreservesUnicode(t *testing.T) {
	got := Text("café résumé naïve 日本語", 100)
	assert.Equal(t, "café résumé naïve 日本語", got)
}

func TestText_CollapsesWhitespaceWithinLines(t *testing.T) {
	got := Text("first   line\nsecond\t\tline", 100)
	assert.Equal(t, "first line\nsecond line", got)
}

func TestText_PreservesLineBreaks(t *testing.T) {
	got := Text("## Heading\n\n* bullet one\n* bullet two", 100)
	assert.Contains(t, got, "## Heading\n\n* bullet one\n* bullet two")
}

func TestText_TruncatesAtWordBoundary(t *testing.T) {
	input := strings.Repeat("word ", 50) // 250 chars
	got := Text(input, 100)

	require.True(t, strings.HasSuffix(got, Ellipsis))
	assert.LessOrEqual(t, len([]rune(got)), 100)
	// Never cuts mid-word: everything before the ellipsis is whole words.
	trimmed := strings.TrimSuffix(got, Ellipsis)
	for _, w := range strings.Fields(trimmed) {
		assert.Equal(t, "word", w)
	}
}

func TestText_PrefersParagraphBreak(t *testing.T) {
	para := strings.Repeat("a", 80) + "\n\n" + strings.Repeat("b", 80)
	got := Text(para, 100)

	require.True(t, strings.HasSuffix(got, Ellipsis))
	assert.Equal(t, strings.Repeat("a", 80)+Ellipsis, got)
}

func TestText_HardCutWithoutBreakPoint(t *testing.T) {
	input := strings.Repeat("x", 500)
	got := Text(input, 100)

	assert.LessOrEqual(t, len([]rune(got)), 100)
	assert.True(t, strings.HasSuffix(got, Ellipsis))
}

func TestText_NeverSplitsMultiByteRunes(t *testing.T) {
	input := strings.Repeat("日本語テキスト", 100)
	got := Text(input, 50)

	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len([]rune(got)), 50)
}

func TestText_TruncationIsFixedPoint(t *testing.T) {
	inputs := []string{
		strings.Repeat("word ", 100),
		strings.Repeat("x", 300),
		strings.Repeat("sentence one. ", 40),
		"short text",
	}
	for _, input := range inputs {
		once := Text(input, 120)
		twice := Text(once, 120)
		assert.Equal(t, once, twice)
	}
}

func TestText_NoTruncationUnderLimit(t *testing.T) {
	got := Text("short text", 100)
	assert.Equal(t, "short text", got)
	assert.NotContains(t, got, Ellipsis)
}

func TestTags_NormalizesAndDeduplicates(t *testing.T) {
	got := Tags([]string{"Hello World!", "Hello-World", ""}, 30, 50)
	assert.Equal(t, []string{"hello-world"}, got)
}

func TestTags_StripsInvalidCharacters(t *testing.T) {
	got := Tags([]string{"C++ & Go!", "foo/bar", "a__b"}, 30, 50)
	assert.Equal(t, []string{"c-go", "foobar", "a__b"}, got)
}

func TestTags_DropsOverlongAndCapsList(t *testing.T) {
	long := strings.Repeat("a", 60)
	raw := []string{long}
	for i := 0; i < 40; i++ {
		raw = append(raw, string(rune('a'+i%26))+strings.Repeat("z", i/26+1))
	}
	got := Tags(raw, 30, 50)

	assert.LessOrEqual(t, len(got), 30)
	for _, tag := range got {
		assert.LessOrEqual(t, len(tag), 50)
	}
}

func TestURL_DefaultsScheme(t *testing.T) {
	assert.Equal(t, "https://example.com/path", URL("example.com/path"))
}

func TestURL_AcceptsValidForms(t *testing.T) {
	valid := []string{
		"https://example.com",
		"http://example.com:8080/a/b?q=1",
		"https://sub.domain.example.org/page#frag",
		"http://localhost:3000/dev",
		"http://192.168.1.1/admin",
	}
	for _, u := range valid {
		assert.Equal(t, u, URL(u), "should accept %s", u)
	}
}

func TestURL_RejectsInvalidForms(t *testing.T) {
	invalid := []string{
		"",
		"   ",
		"mailto:someone@example.com",
		"MAILTO:someone@example.com",
		"ftp://example.com/file",
		"https://",
		"not a url at all",
	}
	for _, u := range invalid {
		assert.Equal(t, "", URL(u), "should reject %q", u)
	}
}

func TestURL_TrimsWhitespace(t *testing.T) {
	assert.Equal(t, "https://example.com", URL("  https://example.com  "))
}
