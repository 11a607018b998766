package search

import (
	"strings"
	"unicode"
)

// latinToCyrillic maps QWERTY keys to the ЙЦУКЕН letters on the same physical key
var latinToCyrillic = map[rune]rune{
	'q': 'й', 'w': 'ц', 'e': 'у', 'r': 'к', 't': 'е', 'y': 'н', 'u': 'г', 'i': 'ш', 'o': 'щ', 'p': 'з',
	'[': 'х', ']': 'ъ',
	'a': 'ф', 's': 'ы', 'd': 'в', 'f': 'а', 'g': 'п', 'h': 'р', 'j': 'о', 'k': 'л', 'l': 'д',
	';': 'ж', '\'': 'э',
	'z': 'я', 'x': 'ч', 'c': 'с', 'v': 'м', 'b': 'и', 'n': 'т', 'm': 'ь',
	',': 'б', '.': 'ю', '`': 'ё',
}

var cyrillicToLatin = invert(latinToCyrillic)

// translit maps lowercase Cyrillic letters to Latin
var translit = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "e",
	'ж': "zh", 'з': "z", 'и': "i", 'й': "y", 'к': "k", 'л': "l", 'м': "m",
	'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u",
	'ф': "f", 'х': "h", 'ц': "ts", 'ч': "ch", 'ш': "sh", 'щ': "sch", 'ъ': "",
	'ы': "y", 'ь': "", 'э': "e", 'ю': "yu", 'я': "ya",
}

func invert(m map[rune]rune) map[rune]rune {
	out := make(map[rune]rune, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

// Variants returns the de-duplicated match variants of a raw query in the order
// original, keyboard layout converted, transliterated, alphanumeric only.
// Empty variants are dropped.
func Variants(raw string) []string {
	query := strings.TrimSpace(raw)
	if query == "" {
		return nil
	}

	candidates := []string{
		query,
		ConvertLayout(query),
		Transliterate(query),
		StripNonAlphanumeric(query),
	}

	variants := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, v := range candidates {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		variants = append(variants, v)
	}
	return variants
}

// ConvertLayout retypes s as if it was entered on the other keyboard layout.
// Case is preserved and runes without a counterpart pass through.
func ConvertLayout(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		lower := unicode.ToLower(r)
		upper := r != lower

		mapped, ok := latinToCyrillic[lower]
		if !ok {
			mapped, ok = cyrillicToLatin[lower]
		}
		if !ok {
			b.WriteRune(r)
			continue
		}
		if upper {
			mapped = unicode.ToUpper(mapped)
		}
		b.WriteRune(mapped)
	}
	return b.String()
}

// Transliterate lowercases s and spells Cyrillic letters in Latin
func Transliterate(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if latin, ok := translit[r]; ok {
			b.WriteString(latin)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// StripNonAlphanumeric keeps only Latin and Cyrillic letters and ASCII digits
func StripNonAlphanumeric(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isAlphanumeric(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isAlphanumeric(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r >= 'а' && r <= 'я', r >= 'А' && r <= 'Я', r == 'ё', r == 'Ё':
		return true
	}
	return false
}

// sanitizeSuggestPrefix keeps letters, digits, spaces and "-_." in an autocomplete prefix
func sanitizeSuggestPrefix(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
