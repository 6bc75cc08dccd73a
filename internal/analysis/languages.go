package analysis

import (
	"fmt"
	"strings"
)

var languageNames = map[string]string{
	"en":    "English",
	"jp":    "Japanese",
	"fr":    "French",
	"kr":    "Korean",
	"zh-cn": "Chinese",
}

// LanguageName returns the display name of a language code, or the
// uppercased code when it is not in the table.
func LanguageName(code string) string {
	if name, ok := languageNames[strings.ToLower(code)]; ok {
		return name
	}
	return strings.ToUpper(code)
}

// Label is the human-facing title of an opportunity.
func Label(cardName, language string) string {
	return fmt.Sprintf("%s (%s)", cardName, LanguageName(language))
}
