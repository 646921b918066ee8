package boolexp

import "strings"

// Expand replaces %0-%9 with args and %<c> with vars[c], where c is matched
// case-insensitively against lowercase keys and non-letter keys exactly.
// %% yields a literal percent. Unknown codes are left in place.
func Expand(text string, args []string, vars map[byte]string) string {
	if strings.IndexByte(text, '%') < 0 {
		return text
	}
	var sb strings.Builder
	sb.Grow(len(text))
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if ch != '%' || i+1 >= len(text) {
			sb.WriteByte(ch)
			continue
		}
		code := text[i+1]
		switch {
		case code == '%':
			sb.WriteByte('%')
		case code >= '0' && code <= '9':
			if n := int(code - '0'); n < len(args) {
				sb.WriteString(args[n])
			}
		default:
			key := code
			if key >= 'A' && key <= 'Z' {
				key += 'a' - 'A'
			}
			v, ok := vars[key]
			if !ok {
				sb.WriteByte('%')
				sb.WriteByte(code)
				break
			}
			sb.WriteString(v)
		}
		i++
	}
	return sb.String()
}
