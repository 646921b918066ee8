package chat

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// MaxNameLen is the longest channel name allowed, after markup is removed.
const MaxNameLen = 30

// StripMarkup removes ANSI escape sequences from s.
func StripMarkup(s string) string {
	if strings.IndexByte(s, 0x1b) < 0 {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != 0x1b {
			sb.WriteByte(s[i])
			continue
		}
		// ESC [ params final
		if i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && (s[j] < 0x40 || s[j] > 0x7e) {
				j++
			}
			i = j
		}
	}
	return sb.String()
}

func foldName(s string) string {
	return cases.Fold().String(s)
}

// normalizeName is the comparison key of a channel name: markup stripped,
// one pair of surrounding <> removed, case folded.
func normalizeName(s string) string {
	s = StripMarkup(s)
	if len(s) >= 2 && s[0] == '<' && s[len(s)-1] == '>' {
		s = s[1 : len(s)-1]
	}
	return foldName(s)
}

// checkName validates a prospective name for a new channel, or for
// renaming self when self is non-nil.
func (d *Directory) checkName(name string, self *Channel) error {
	plain := StripMarkup(name)
	if plain == "" {
		return ErrNameInvalid
	}
	first, _ := utf8.DecodeRuneInString(plain)
	last, _ := utf8.DecodeLastRuneInString(plain)
	if unicode.IsSpace(first) || unicode.IsSpace(last) {
		return ErrNameInvalid
	}
	for _, r := range plain {
		if !unicode.IsPrint(r) || r == '|' {
			return ErrNameInvalid
		}
	}
	if utf8.RuneCountInString(plain) > MaxNameLen {
		return ErrNameTooLong
	}
	key := normalizeName(plain)
	if key == "" {
		return ErrNameInvalid
	}
	if other, ok := d.idx.channels.Get(&Channel{key: key}); ok && other != self {
		return ErrNameNotUnique
	}
	return nil
}
