package utils

import "strings"

// NormalizePlate converts raw plate text into the lookup form shared by the
// debounce gate and the account store: trimmed, upper-cased, with internal
// whitespace collapsed to single spaces.
func NormalizePlate(plate string) string {
	fields := strings.Fields(plate)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(strings.Join(fields, " "))
}
