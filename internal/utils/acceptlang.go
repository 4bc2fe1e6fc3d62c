package utils

import (
	"strings"

	"golang.org/x/text/language"
)

// DetermineLocale resolves a locale from an explicit hint (a chat client's
// language code or a ?lang= param) and an Accept-Language header, restricted
// to supported. Falls back to def, then to the first supported locale.
func DetermineLocale(hint, acceptLang string, supported []string, def string) string {
	if len(supported) == 0 {
		return "en"
	}
	tags := make([]language.Tag, 0, len(supported))
	for _, s := range supported {
		tags = append(tags, language.Make(strings.ToLower(s)))
	}
	matcher := language.NewMatcher(tags)

	if hint = strings.TrimSpace(hint); hint != "" {
		if tag, err := language.Parse(hint); err == nil {
			if _, idx, conf := matcher.Match(tag); conf != language.No {
				return strings.ToLower(supported[idx])
			}
		}
	}

	if prefs, _, err := language.ParseAcceptLanguage(acceptLang); err == nil && len(prefs) > 0 {
		if _, idx, conf := matcher.Match(prefs...); conf != language.No {
			return strings.ToLower(supported[idx])
		}
	}

	for _, s := range supported {
		if strings.EqualFold(s, def) {
			return strings.ToLower(s)
		}
	}
	return strings.ToLower(supported[0])
}
