package labels

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// noiseRunes are symbols OCR engines emit from label borders, ornaments and
// dirt; each one is replaced with a space.
var noiseRunes = map[rune]bool{
	'|': true, '_': true, '*': true, '~': true, '#': true, '<': true, '>': true,
	'{': true, '}': true, '[': true, ']': true, '=': true, '+': true, '^': true,
	'"': true, '\\': true, '/': true, '@': true, ';': true, '!': true, '?': true,
	',': true, ':': true, '•': true, '·': true, '©': true, '®': true, '™': true,
	'«': true, '»': true, '“': true, '”': true, '„': true, '§': true, '¦': true,
}

// reVintageLike matches 4-char tokens that look like a year with letters
// read in place of digits (2O18, I998).
var reVintageLike = regexp.MustCompile(`^[12Il][0-9OoIl]{3}$`)

var digitRepair = strings.NewReplacer("O", "0", "o", "0", "I", "1", "l", "1")

// Normalizer cleans raw OCR text. It is stateless apart from the read-only
// misread table and safe for concurrent use.
type Normalizer struct {
	misreads map[string]string
}

// NewNormalizer uses the OCR misread table of d.
func NewNormalizer(d *Dictionaries) *Normalizer {
	return &Normalizer{misreads: d.misreads}
}

// Normalize strips noise symbols, fixes known misreads and collapses all
// whitespace (line breaks included) into single spaces.
func (n *Normalizer) Normalize(raw string) string {
	return n.normalizeLine(raw)
}

// Lines splits raw into lines, normalizes each and drops the empty ones.
func (n *Normalizer) Lines(raw string) []string {
	split := strings.FieldsFunc(raw, func(r rune) bool { return r == '\n' || r == '\r' })
	lines := make([]string, 0, len(split))
	for _, l := range split {
		if l = n.normalizeLine(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// CorrectMisreads applies only the misread table, keeping symbols and line
// breaks so the text can still be read by a person or a language model.
func (n *Normalizer) CorrectMisreads(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		tokens := strings.Fields(line)
		for j, tok := range tokens {
			tokens[j] = n.repairToken(tok)
		}
		lines[i] = strings.Join(tokens, " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func (n *Normalizer) normalizeLine(s string) string {
	s = strings.Map(func(r rune) rune {
		if noiseRunes[r] {
			return ' '
		}
		return r
	}, s)
	tokens := strings.Fields(s)
	for i, tok := range tokens {
		tokens[i] = n.repairToken(tok)
	}
	return strings.Join(tokens, " ")
}

func (n *Normalizer) repairToken(tok string) string {
	if rep, ok := n.misreads[strings.ToUpper(tok)]; ok {
		return matchCase(tok, rep)
	}
	if reVintageLike.MatchString(tok) && strings.ContainsAny(tok, "OoIl") {
		fixed := digitRepair.Replace(tok)
		if year, err := strconv.Atoi(fixed); err == nil && year >= 1900 && year <= 2099 {
			return fixed
		}
	}
	return tok
}

// matchCase returns rep in the letter case style of orig.
func matchCase(orig, rep string) string {
	switch {
	case orig == strings.ToUpper(orig):
		return strings.ToUpper(rep)
	case orig == strings.ToLower(orig):
		return strings.ToLower(rep)
	default:
		lower := strings.ToLower(rep)
		r, size := utf8.DecodeRuneInString(lower)
		return string(unicode.ToUpper(r)) + lower[size:]
	}
}

// Fold builds the comparison key used for every dictionary match: accents
// removed, upper case, hyphens read as spaces, whitespace collapsed.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = strings.ToUpper(out)
	out = strings.Map(func(r rune) rune {
		if r == '-' || r == '–' || r == '—' {
			return ' '
		}
		return r
	}, out)
	return strings.Join(strings.Fields(out), " ")
}

// containsWord reports whether word occurs in s delimited by non-alphanumeric
// runes or the ends of s.
func containsWord(s, word string) bool {
	if word == "" {
		return false
	}
	for offset := 0; offset <= len(s)-len(word); {
		i := strings.Index(s[offset:], word)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(word)
		if isBoundary(s[:start], true) && isBoundary(s[end:], false) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		offset = start + size
	}
	return false
}

func isBoundary(side string, before bool) bool {
	if side == "" {
		return true
	}
	var r rune
	if before {
		r, _ = utf8.DecodeLastRuneInString(side)
	} else {
		r, _ = utf8.DecodeRuneInString(side)
	}
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
