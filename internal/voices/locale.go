package voices

import (
	"os"
	"strings"

	"golang.org/x/text/language"
)

// fallbackLocale is used when neither configuration nor environment yields a
// parseable locale.
var fallbackLocale = language.AmericanEnglish

// ResolveLocale picks the default-voice locale: the explicit value when set,
// then LC_ALL, then LANG, then en-US.
func ResolveLocale(explicit string) language.Tag {
	candidates := []string{explicit, os.Getenv("LC_ALL"), os.Getenv("LANG")}

	for _, candidate := range candidates {
		tag, ok := parseLocale(candidate)
		if ok {
			return tag
		}
	}
	return fallbackLocale
}

// parseLocale parses a POSIX or BCP-47 locale string, tolerating encoding
// suffixes like ".UTF-8".
func parseLocale(value string) (language.Tag, bool) {
	value = strings.TrimSpace(value)
	if value == "" || value == "C" || value == "POSIX" {
		return language.Und, false
	}

	if i := strings.IndexByte(value, '.'); i >= 0 {
		value = value[:i]
	}
	value = strings.ReplaceAll(value, "_", "-")

	tag, err := language.Parse(value)
	if err != nil || tag == language.Und {
		return language.Und, false
	}
	return tag, true
}
