package catalog

import "strings"

// Lang is a storefront language.
type Lang string

const (
	LangUK Lang = "uk"
	LangRU Lang = "ru"
)

// DefaultLang is used when the visitor has no language preference.
const DefaultLang = LangUK

// ParseLang maps a language tag ("ru", "ru-RU", "uk_UA") to a storefront
// language. Unknown tags yield false.
func ParseLang(tag string) (Lang, bool) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	switch {
	case strings.HasPrefix(tag, "uk"), strings.HasPrefix(tag, "ua"):
		return LangUK, true
	case strings.HasPrefix(tag, "ru"):
		return LangRU, true
	default:
		return "", false
	}
}

// Text is a bilingual label.
type Text struct {
	UK string
	RU string
}

// In returns the label in the requested language, falling back to the other
// language when the requested one is empty.
func (t Text) In(lang Lang) string {
	if lang == LangRU {
		if t.RU != "" {
			return t.RU
		}
		return t.UK
	}
	if t.UK != "" {
		return t.UK
	}
	return t.RU
}
