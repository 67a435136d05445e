package schema

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// jsonName lowers snake_case into lowerCamelCase: underscores are dropped
// and the following letter is upper-cased.
func jsonName(name string) string {
	var b strings.Builder
	upper := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '_':
			upper = true
		case upper && 'a' <= c && c <= 'z':
			b.WriteByte(c - 'a' + 'A')
			upper = false
		default:
			b.WriteByte(c)
			upper = false
		}
	}
	return b.String()
}

// mapEntryName derives the synthetic entry message name of a map field:
// "my_map" becomes "MyMapEntry".
func mapEntryName(field string) string {
	var b strings.Builder
	upper := true
	for i := 0; i < len(field); i++ {
		c := field[i]
		switch {
		case c == '_':
			upper = true
		case upper && 'a' <= c && c <= 'z':
			b.WriteByte(c - 'a' + 'A')
			upper = false
		default:
			b.WriteByte(c)
			upper = false
		}
	}
	b.WriteString("Entry")
	return b.String()
}

func joinName(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "." + name
}

// unquote decodes a single- or double-quoted schema string literal. The
// result may hold arbitrary bytes from octal and hex escapes.
func unquote(lit string) (string, error) {
	if len(lit) < 2 || lit[0] != lit[len(lit)-1] || (lit[0] != '"' && lit[0] != '\'') {
		return "", fmt.Errorf("malformed string literal %s", lit)
	}
	s := lit[1 : len(lit)-1]
	if !strings.ContainsRune(s, '\\') {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			return "", fmt.Errorf("unterminated escape in %s", lit)
		}
		switch c = s[i]; c {
		case 'a':
			b.WriteByte('\a')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'v':
			b.WriteByte('\v')
		case '\\', '\'', '"', '?':
			b.WriteByte(c)
		case 'x', 'X':
			v, n := 0, 0
			for n < 2 && i+1 < len(s) && isHex(s[i+1]) {
				i++
				v = v*16 + hexVal(s[i])
				n++
			}
			if n == 0 {
				return "", fmt.Errorf("invalid hex escape in %s", lit)
			}
			b.WriteByte(byte(v))
		case 'u', 'U':
			width := 4
			if c == 'U' {
				width = 8
			}
			if i+width >= len(s) {
				return "", fmt.Errorf("invalid unicode escape in %s", lit)
			}
			r := 0
			for k := 0; k < width; k++ {
				i++
				if !isHex(s[i]) {
					return "", fmt.Errorf("invalid unicode escape in %s", lit)
				}
				r = r*16 + hexVal(s[i])
			}
			if !utf8.ValidRune(rune(r)) {
				return "", fmt.Errorf("invalid unicode escape in %s", lit)
			}
			b.WriteRune(rune(r))
		default:
			if c < '0' || c > '7' {
				return "", fmt.Errorf("invalid escape \\%c in %s", c, lit)
			}
			v := int(c - '0')
			for n := 1; n < 3 && i+1 < len(s) && s[i+1] >= '0' && s[i+1] <= '7'; n++ {
				i++
				v = v*8 + int(s[i]-'0')
			}
			if v > 0xff {
				return "", fmt.Errorf("octal escape out of range in %s", lit)
			}
			b.WriteByte(byte(v))
		}
	}
	return b.String(), nil
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func hexVal(c byte) int {
	switch {
	case c >= 'a':
		return int(c-'a') + 10
	case c >= 'A':
		return int(c-'A') + 10
	}
	return int(c - '0')
}
