package stage

import (
	"strings"
	"unicode"
)

// Label converts a stage name such as "find_duplicates" into "Find Duplicates".
func Label(name string) string {
	if name == "" {
		return ""
	}
	parts := strings.Fields(strings.ReplaceAll(name, "_", " "))
	for i, part := range parts {
		runes := []rune(strings.ToLower(part))
		runes[0] = unicode.ToUpper(runes[0])
		parts[i] = string(runes)
	}
	return strings.Join(parts, " ")
}
