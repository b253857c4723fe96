package reader

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jonathan/reader-sync/internal/types"
)

// ErrNoURL is returned when no canonical URL can be derived for an
// item; the caller must skip it.
var ErrNoURL = fmt.Errorf("item has no usable URL")

// emailURLBase is where synthesized addresses for email items point.
// Emails have no public URL, so each one gets a stable per-item
// address derived from its identifier.
const emailURLBase = "https://read.readwise.io/email/"

// videoDomains mark source URLs that are kept verbatim as canonical.
var videoDomains = []string{"youtube.com", "youtu.be", "vimeo.com"}

var titleCaser = cases.Title(language.English)

// Classification is the result of classifying one item.
type Classification struct {
	CanonicalURL string
	IsEmail      bool
	Title        string
}

// Classify derives an item's canonical URL, email flag, and display
// title. It is a pure function of the item data.
func Classify(item types.SourceItem) (Classification, error) {
	title := CleanTitle(item.Title)

	if isEmailItem(item) {
		return Classification{
			CanonicalURL: emailURLBase + item.ID,
			IsEmail:      true,
			Title:        title,
		}, nil
	}

	if item.SourceURL != "" && isVideoURL(item.SourceURL) {
		return Classification{CanonicalURL: item.SourceURL, Title: title}, nil
	}

	canonical := item.SourceURL
	if canonical == "" {
		canonical = item.URL
	}
	// A mail-scheme URL is never acceptable as canonical.
	if canonical == "" || isMailScheme(canonical) {
		return Classification{}, ErrNoURL
	}
	return Classification{CanonicalURL: canonical, Title: title}, nil
}

// isEmailItem reports whether the item originated as an email or
// forwarded newsletter.
func isEmailItem(item types.SourceItem) bool {
	if item.Category == types.CategoryEmail {
		return true
	}
	for _, u := range []string{item.SourceURL, item.URL} {
		if strings.Contains(u, "forwarded-email") {
			return true
		}
	}
	return isMailScheme(item.URL)
}

func isMailScheme(u string) bool {
	return strings.HasPrefix(strings.ToLower(u), "mailto:")
}

func isVideoURL(u string) bool {
	lower := strings.ToLower(u)
	for _, domain := range videoDomains {
		if strings.Contains(lower, domain) {
			return true
		}
	}
	return false
}

// CleanTitle reformats pipe-delimited titles (common on auto-generated
// video titles): the first segment is title-cased and the segments are
// rejoined with ": ".
func CleanTitle(title string) string {
	if !strings.Contains(title, "|") {
		return title
	}
	parts := strings.Split(title, "|")
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	parts[0] = titleCaser.String(parts[0])
	return strings.Join(parts, ": ")
}
