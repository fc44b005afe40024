package model

import (
	"strings"

	"golang.org/x/text/language"
)

// Language is an output prose language. Only English and Dutch templates exist.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageDutch   Language = "nl"
)

var languageMatcher = language.NewMatcher([]language.Tag{
	language.English, // first entry is the fallback
	language.Dutch,
})

// ResolveLanguage maps a caller-supplied tag such as "nl-BE", "en_US" or ""
// onto a supported Language. Unknown or malformed tags resolve to English.
func ResolveLanguage(raw string) Language {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), "_", "-")
	if raw == "" {
		return LanguageEnglish
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return LanguageEnglish
	}
	_, idx, conf := languageMatcher.Match(tag)
	if conf == language.No || idx == 0 {
		return LanguageEnglish
	}
	return LanguageDutch
}
