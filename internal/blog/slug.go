package blog

import (
	"strings"
	"unicode"
)

const (
	fallbackSlug    = "post"
	fallbackTagSlug = "tag"
)

// Slugify lower-cases value and joins its letter and digit runs with dashes.
func Slugify(value string) string {
	var builder strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(value)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && builder.Len() > 0 {
				builder.WriteByte('-')
			}
			builder.WriteRune(r)
			pendingDash = false
			continue
		}
		pendingDash = true
	}
	return builder.String()
}

func normalizeTagName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func tagSlug(name string) string {
	if slug := Slugify(name); slug != "" {
		return slug
	}
	return fallbackTagSlug
}
