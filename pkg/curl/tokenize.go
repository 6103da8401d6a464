package curl

import (
	"strings"
	"unicode"
)

// tokenize splits args into words. A word is a run of adjacent pieces, each
// either plain non-space characters or a quoted span running to the next
// matching quote. Quotes are kept; unquote strips them from the outside of a
// word only. A quote with no match later in the input is an ordinary
// character.
func tokenize(args string) []string {
	var (
		tokens []string
		cur    strings.Builder
		inWord bool
	)
	rs := []rune(args)
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			if inWord {
				tokens = append(tokens, cur.String())
				cur.Reset()
				inWord = false
			}
		case r == '\'' || r == '"':
			inWord = true
			end := closingQuote(rs, i+1, r)
			if end < 0 {
				cur.WriteRune(r)
				continue
			}
			cur.WriteString(string(rs[i : end+1]))
			i = end
		default:
			inWord = true
			cur.WriteRune(r)
		}
	}
	if inWord {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

// closingQuote returns the index of the first quote at or after from, or -1.
func closingQuote(rs []rune, from int, quote rune) int {
	for j := from; j < len(rs); j++ {
		if rs[j] == quote {
			return j
		}
	}
	return -1
}

// unquote removes one pair of matching quotes surrounding t.
func unquote(t string) string {
	if len(t) < 2 {
		return t
	}
	if q := t[0]; (q == '\'' || q == '"') && t[len(t)-1] == q {
		return t[1 : len(t)-1]
	}
	return t
}
