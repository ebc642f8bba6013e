// Package locale selects which language variant of a bilingual field is
// shown, and holds the interface label catalog for both languages.
package locale

import (
	"fmt"
	"strings"
)

// Locale is the display language.
type Locale string

const (
	English Locale = "en"
	Chinese Locale = "zh"

	Default = English
)

// Parse accepts "en", "zh" and common spellings of them.
func Parse(s string) (Locale, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "en", "en-us", "en_us", "english":
		return English, nil
	case "zh", "zh-cn", "zh_cn", "zh-hans", "cn", "chinese", "中文":
		return Chinese, nil
	default:
		return Default, fmt.Errorf("unknown locale %q (want en or zh)", s)
	}
}

// Secondary reports whether l selects the translated fields.
func (l Locale) Secondary() bool { return l == Chinese }

// Toggle returns the other locale.
func (l Locale) Toggle() Locale {
	if l == Chinese {
		return English
	}
	return Chinese
}

func (l Locale) String() string {
	if l == Chinese {
		return "zh"
	}
	return "en"
}

// Pick applies the bilingual rule: under the secondary locale a non-empty
// secondary value wins, otherwise the primary value is used.
func Pick(l Locale, primary, secondary string) string {
	if l.Secondary() && secondary != "" {
		return secondary
	}
	return primary
}

// Label returns the catalog text for key, falling back to English and then
// to the key itself.
func (l Locale) Label(key string) string {
	if entry, ok := catalog[key]; ok {
		return Pick(l, entry[0], entry[1])
	}
	return key
}

// Labelf formats a catalog entry.
func (l Locale) Labelf(key string, args ...any) string {
	return fmt.Sprintf(l.Label(key), args...)
}
