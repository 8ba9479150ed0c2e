package services

import (
	"regexp"
	"strconv"
	"strings"
)

var selectionPattern = regexp.MustCompile(`^\d+(?:\s*[,\s]\s*\d+)*$`)

// ParseSelection reads pack choices such as "0" or "1,3". Zero means apply all
// and swallows any other numbers. Duplicates are dropped, order is kept.
func ParseSelection(text string) ([]int, bool) {
	text = strings.TrimSpace(text)
	if text == "" || !selectionPattern.MatchString(text) {
		return nil, false
	}

	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})

	seen := make(map[int]bool, len(fields))
	selection := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, false
		}
		if n == 0 {
			return []int{0}, true
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		selection = append(selection, n)
	}

	return selection, len(selection) > 0
}

// IsApplyAll reports whether the selection is the "0 = apply all" choice.
func IsApplyAll(selection []int) bool {
	return len(selection) == 1 && selection[0] == 0
}
