package documents

import (
	"regexp"
	"strconv"
	"strings"
)

// UniqueTitle returns base when no existing name collides with it, otherwise
// "base (n)" with n one above the highest suffix already used.
func UniqueTitle(base string, existing []string) string {
	base = strings.TrimSpace(base)
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(base) + `\s*\((\d+)\)$`)

	exact := false
	maxSuffix := 0
	for _, name := range existing {
		if name == base {
			exact = true
			continue
		}
		if m := pattern.FindStringSubmatch(name); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > maxSuffix {
				maxSuffix = n
			}
		}
	}
	if !exact && maxSuffix == 0 {
		return base
	}
	return base + " (" + strconv.Itoa(maxSuffix+1) + ")"
}
