package data

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// SanitizeFilename removes characters that are invalid in filenames
func SanitizeFilename(name string) string {
	result := norm.NFC.String(name)
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "_")
	}
	result = strings.Map(func(r rune) rune {
		if r < 0x20 {
			return -1
		}
		return r
	}, result)
	result = strings.TrimSpace(result)
	result = strings.Trim(result, ".")
	if result == "" {
		return "_"
	}
	return result
}
