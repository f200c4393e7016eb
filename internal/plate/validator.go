package plate

import (
	"strings"
	"unicode"

	"tollgate-service/internal/domain/toll"
)

// Placeholder glyphs for plate positions the OCR could not settle. Undecided
// characters are kept visible in the canonical string instead of being
// silently dropped.
const (
	PlaceholderLetter = '⨉'
	PlaceholderDigit  = '∎'
)

// Supported validator languages.
const (
	LanguageEnglish = "en"
	LanguageNepali  = "ne"
)

// nepaliConsonants are the base consonant runes legal on Nepali plates.
var nepaliConsonants = []rune("कखगघङचछजझटठडढणतथदधनपफबभमयरलवशषसहक्षत्रज्ञ")

// nepaliDigits are the Devanagari digits ०-९.
var nepaliDigits = []rune("०१२३४५६७८९")

var (
	nepaliAlphaSet = runeSet(append(nepaliConsonants, '-'))
	nepaliDigitSet = runeSet(nepaliDigits)
)

func runeSet(rs []rune) map[rune]bool {
	set := make(map[rune]bool, len(rs))
	for _, r := range rs {
		set[r] = true
	}
	return set
}

// GrammarValidator normalizes raw OCR readings into the fixed plate grammar of
// a jurisdiction. Readings below MinConfidence are ignored entirely.
type GrammarValidator struct {
	MinConfidence float64
}

// Validate dispatches on language and returns the canonical plate string, or
// "" when no reading cleared the confidence threshold.
func (v GrammarValidator) Validate(readings []toll.PlateReading, language string) string {
	switch language {
	case LanguageEnglish:
		return v.validateEnglish(readings)
	case LanguageNepali:
		return v.validateNepali(readings)
	default:
		return ""
	}
}

// validateEnglish assembles the grammar `[STATE ]TTT NNNN`: an optional
// alphabetic state token, three letters and four digits. Missing letter and
// digit positions are filled with placeholder glyphs.
func (v GrammarValidator) validateEnglish(readings []toll.PlateReading) string {
	if len(readings) == 0 {
		return ""
	}

	var state string
	var chars []rune
	usable := false
	for _, r := range readings {
		if r.Confidence < v.MinConfidence {
			continue
		}
		usable = true
		text := cleanEnglishText(r.Text)
		if len([]rune(text)) > 4 && isAlpha(text) {
			state = strings.ToUpper(text)
			continue
		}
		chars = append(chars, []rune(text)...)
	}
	if !usable {
		return ""
	}

	var letters, digits []rune
	for _, c := range chars {
		switch {
		case len(letters) < 3 && unicode.IsLetter(c):
			letters = append(letters, unicode.ToUpper(c))
		case len(digits) < 4 && unicode.IsDigit(c):
			digits = append(digits, c)
		}
	}
	letters = padRight(letters, 3, PlaceholderLetter)
	digits = padRight(digits, 4, PlaceholderDigit)

	return strings.TrimSpace(state + " " + string(letters) + " " + string(digits))
}

// validateNepali assembles the old `S T NN T NNNN` or new `S NNN T NNNN`
// layout from Devanagari runs, after mapping the Latin homoglyphs OCR tends
// to produce back to their Devanagari forms.
func (v GrammarValidator) validateNepali(readings []toll.PlateReading) string {
	if len(readings) == 0 {
		return ""
	}

	var state string
	var chars []rune
	usable := false
	for _, r := range readings {
		if r.Confidence < v.MinConfidence {
			continue
		}
		usable = true
		runes := []rune(r.Text)
		if len(runes) > 4 && strings.ContainsRune(r.Text, '-') {
			state = r.Text
			continue
		}
		chars = append(chars, runes...)
	}
	if !usable {
		return ""
	}

	var letters, digits []rune
	for _, c := range chars {
		c = cleanNepaliRune(c)
		switch {
		case nepaliAlphaSet[c]:
			letters = append(letters, c)
		case nepaliDigitSet[c]:
			digits = append(digits, c)
		}
	}

	oldPattern := len(letters) >= 2
	letters = padRight(letters, 2, PlaceholderLetter)
	digits = padLeft(digits, 7, PlaceholderDigit)

	var b strings.Builder
	if state != "" {
		b.WriteString(state)
		b.WriteByte(' ')
	}
	if oldPattern {
		b.WriteRune(letters[0])
		b.WriteByte(' ')
		b.WriteString(string(digits[1:3]))
		b.WriteByte(' ')
		b.WriteRune(letters[1])
		b.WriteByte(' ')
		b.WriteString(string(digits[3:]))
	} else {
		b.WriteString(string(digits[0:3]))
		b.WriteByte(' ')
		b.WriteRune(letters[0])
		b.WriteByte(' ')
		b.WriteString(string(digits[3:]))
	}
	return strings.TrimSpace(b.String())
}

// cleanEnglishText fixes the common digit-for-letter misreads in a 3-letter
// series token: only applied when exactly one of three characters is a digit.
func cleanEnglishText(text string) string {
	runes := []rune(text)
	if len(runes) != 3 || countDigits(runes) != 1 {
		return text
	}
	replacements := map[rune]rune{'4': 'A', '8': 'B', '3': 'B', '0': 'D'}
	for i, r := range runes {
		if repl, ok := replacements[r]; ok {
			runes[i] = repl
		}
	}
	return string(runes)
}

// cleanNepaliRune maps Latin homoglyphs back to Devanagari.
func cleanNepaliRune(r rune) rune {
	switch r {
	case '0', 'o', 'O':
		return '०'
	case '8':
		return '४'
	case 'c', 'C':
		return '८'
	default:
		return r
	}
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func countDigits(rs []rune) int {
	n := 0
	for _, r := range rs {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

func padRight(rs []rune, n int, fill rune) []rune {
	for len(rs) < n {
		rs = append(rs, fill)
	}
	return rs[:n]
}

func padLeft(rs []rune, n int, fill rune) []rune {
	for len(rs) < n {
		rs = append([]rune{fill}, rs...)
	}
	return rs[len(rs)-n:]
}
