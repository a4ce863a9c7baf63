package locale

import (
	"strings"

	"golang.org/x/text/language"
)

const (
	LanguageJapanese = "ja"
	LanguageEnglish  = "en"
)

// Default is used when nothing in the request matches a supported language.
var Default = LanguageJapanese

var matcher = language.NewMatcher([]language.Tag{language.Japanese, language.English})

// NormalizeLanguage maps a single tag such as "en-US" onto a supported
// language, or "" when it is not supported.
func NormalizeLanguage(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	tag, err := language.Parse(strings.ReplaceAll(trimmed, "_", "-"))
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	switch base.String() {
	case LanguageJapanese:
		return LanguageJapanese
	case LanguageEnglish:
		return LanguageEnglish
	}
	return ""
}

// FromAcceptLanguage picks the best supported language for an
// Accept-Language header, falling back to Default.
func FromAcceptLanguage(header string) string {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return Default
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return Default
	}
	if idx == 1 {
		return LanguageEnglish
	}
	return LanguageJapanese
}

// Resolve prefers an explicit choice over the header.
func Resolve(explicit, acceptLanguage string) string {
	if lang := NormalizeLanguage(explicit); lang != "" {
		return lang
	}
	return FromAcceptLanguage(acceptLanguage)
}
