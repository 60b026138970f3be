package crm

import "strings"

// SplitName breaks a full name into first and last name. The CRM requires a
// last name, so a single-word name is used for both.
func SplitName(name string) (first, last string) {
	name = strings.TrimSpace(name)
	i := strings.IndexFunc(name, isSpace)
	if i < 0 {
		return name, name
	}
	return name[:i], strings.TrimSpace(name[i:])
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
