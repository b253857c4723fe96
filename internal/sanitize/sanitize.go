// Package sanitize normalizes and bounds untrusted free text before it
// crosses the wire to the sink API.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Ellipsis marks a truncated string.
const Ellipsis = "…"

// breakSearchRatio is how far into the string (as a fraction of the
// maximum length) a truncation break point is allowed to start.
const breakSearchRatio = 0.7

var (
	spaceRunPattern  = regexp.MustCompile(`[ \t]+`)
	hyphenRunPattern = regexp.MustCompile(`-{2,}`)
	tagCharPattern   = regexp.MustCompile(`[^a-z0-9_-]`)
	urlPattern       = regexp.MustCompile(`^https?://(localhost|(\d{1,3}\.){3}\d{1,3}|([a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?\.)+[a-zA-Z]{2,})(:\d+)?([/?#]\S*)?$`)
)

// Text normalizes free text and truncates it to at most maxLen runes.
// Returns the empty string for empty input. Unicode content is kept
// intact; only control characters are stripped. Line breaks survive so
// markdown structure is preserved.
func Text(s string, maxLen int) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}

	s = norm.NFC.String(s)
	s = stripControl(s)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(spaceRunPattern.ReplaceAllString(line, " "), " ")
	}
	s = strings.Join(lines, "\n")
	s = strings.TrimSpace(s)

	if maxLen > 0 {
		s = truncate(s, maxLen)
	}
	return s
}

// stripControl removes control characters other than newline.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' {
			return r
		}
		if r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// truncate cuts s to at most maxLen runes, preferring a paragraph
// break, then a sentence end, then a line break, then a word boundary,
// searched no earlier than breakSearchRatio of maxLen into the string.
// The ellipsis marker counts against maxLen so truncation is a
// fixed point: re-sanitizing the result never truncates again.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}

	limit := maxLen - len([]rune(Ellipsis))
	if limit <= 0 {
		return Ellipsis
	}
	window := runes[:limit]
	floor := int(breakSearchRatio * float64(maxLen))
	if floor > limit {
		floor = limit
	}

	cut := -1
	for _, sep := range []string{"\n\n", ". ", "\n", " "} {
		if idx := lastIndexRunes(window, sep); idx >= floor {
			cut = idx
			break
		}
	}
	if cut < 0 {
		cut = limit
	}

	out := strings.TrimRight(string(window[:cut]), " \n")
	return out + Ellipsis
}

// lastIndexRunes finds the rune index of the last occurrence of sep.
func lastIndexRunes(runes []rune, sep string) int {
	idx := strings.LastIndex(string(runes), sep)
	if idx < 0 {
		return -1
	}
	return len([]rune(string(runes)[:idx]))
}

// Tags runs the strict tag pipeline: lowercase, whitespace to single
// hyphens, strip everything outside letters/digits/hyphen/underscore,
// collapse hyphen runs, drop empty or over-length results, dedupe, and
// cap the list at the sink API's tag limit.
func Tags(raw []string, maxTags, maxTagLen int) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(raw))
	for _, tag := range raw {
		tag = strings.ToLower(strings.TrimSpace(tag))
		tag = spaceRunPattern.ReplaceAllString(tag, "-")
		tag = tagCharPattern.ReplaceAllString(tag, "")
		tag = hyphenRunPattern.ReplaceAllString(tag, "-")
		tag = strings.Trim(tag, "-")
		if tag == "" || len(tag) > maxTagLen {
			continue
		}
		if seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
		if len(out) >= maxTags {
			break
		}
	}
	return out
}

// URL trims and validates a URL, defaulting the scheme to https when
// none is present. Returns the empty string when the result does not
// look like a dereferenceable web address; mail-scheme URLs are always
// rejected.
func URL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(u), "mailto:") {
		return ""
	}
	if !strings.Contains(u, "://") {
		u = "https://" + u
	}
	if !urlPattern.MatchString(u) {
		return ""
	}
	return u
}
