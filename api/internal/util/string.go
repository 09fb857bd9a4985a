package util

import (
	"strings"
	"unicode/utf8"
)

// SplitMessage cuts s into chunks of at most max bytes. A chunk ends at the
// last line break that fits, and that single break is dropped; otherwise the
// cut falls on a rune boundary. Text is otherwise kept as is. Blank input
// yields no chunks.
func SplitMessage(s string, max int) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if max <= 0 || len(s) <= max {
		return []string{s}
	}
	var out []string
	for len(s) > max {
		if nl := strings.LastIndexByte(s[:max+1], '\n'); nl > 0 {
			out = append(out, s[:nl])
			s = s[nl+1:]
			continue
		}
		cut := max
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		if cut == 0 {
			cut = max
		}
		out = append(out, s[:cut])
		s = s[cut:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}
