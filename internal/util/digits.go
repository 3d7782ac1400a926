package util

import "strings"

// arabicDigits maps Arabic-Indic and Eastern Arabic-Indic digit glyphs to
// their ASCII equivalents. WhatsApp keyboards in the target locale produce
// either set depending on the device language.
var arabicDigits = map[rune]rune{
	'٠': '0', '١': '1', '٢': '2', '٣': '3', '٤': '4',
	'٥': '5', '٦': '6', '٧': '7', '٨': '8', '٩': '9',
	'۰': '0', '۱': '1', '۲': '2', '۳': '3', '۴': '4',
	'۵': '5', '۶': '6', '۷': '7', '۸': '8', '۹': '9',
}

// NormalizeDigits replaces any Arabic-Indic digit glyphs in text with ASCII
// digits. All other runes pass through unchanged.
func NormalizeDigits(text string) string {
	return strings.Map(func(r rune) rune {
		if ascii, ok := arabicDigits[r]; ok {
			return ascii
		}
		return r
	}, text)
}

// IsDigits reports whether text is non-empty and consists solely of ASCII digits.
func IsDigits(text string) bool {
	if text == "" {
		return false
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
