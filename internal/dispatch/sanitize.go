package dispatch

import "strings"

// SanitizeJSON strips the markdown fences models like to wrap JSON in.
func SanitizeJSON(b []byte) []byte {
	s := strings.TrimSpace(string(b))
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return []byte(strings.TrimSpace(s))
}
