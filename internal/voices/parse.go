package voices

import (
	"regexp"
	"strings"

	"golang.org/x/text/language"

	"tts-converter/internal/domain"
)

// linePattern matches one enumeration record. All three fields are required;
// lines failing the shape are skipped silently.
var linePattern = regexp.MustCompile(`^Name:\s*(.+?),\s*Gender:\s*(.+?),\s*Language:\s*(.+)$`)

// ParseList extracts voices from line-oriented enumeration output of the
// form "Name: <n>, Gender: <g>, Language: <l>".
func ParseList(output string) []domain.Voice {
	var parsed []domain.Voice

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		match := linePattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}

		name := strings.TrimSpace(match[1])
		gender := strings.TrimSpace(match[2])
		lang := strings.TrimSpace(match[3])
		if name == "" || gender == "" || lang == "" {
			continue
		}

		parsed = append(parsed, domain.Voice{
			ID:       name,
			Name:     name,
			Gender:   gender,
			Language: lang,
		})
	}

	return parsed
}

// MarkDefault flags the first voice whose language matches the locale; when
// none matches, the first voice becomes the default.
func MarkDefault(voices []domain.Voice, locale language.Tag) {
	if len(voices) == 0 {
		return
	}

	matcher := language.NewMatcher([]language.Tag{locale})
	for i, voice := range voices {
		tag, err := language.Parse(normalizeTag(voice.Language))
		if err != nil {
			continue
		}
		if _, _, confidence := matcher.Match(tag); confidence >= language.High {
			voices[i].IsDefault = true
			return
		}
	}

	voices[0].IsDefault = true
}

// normalizeTag converts POSIX-style locale spellings (en_US) to BCP-47.
func normalizeTag(lang string) string {
	return strings.ReplaceAll(lang, "_", "-")
}
