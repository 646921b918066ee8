package chat

import (
	"strings"
)

type privEntry struct {
	name   string
	letter byte // 0 when the privilege has no letter
	set    Privs
	show   Privs
}

var privTable = []privEntry{
	{"Player", 'P', PrivPlayer, PrivPlayer},
	{"Object", 'T', PrivObject, PrivObject},
	{"Thing", 0, PrivObject, 0},
	{"Disabled", 'D', PrivDisabled, PrivDisabled},
	{"Quiet", 'Q', PrivQuiet, PrivQuiet},
	{"Admin", 'A', PrivAdmin | PrivPlayer, PrivAdmin},
	{"Wizard", 'W', PrivWizard | PrivPlayer, PrivWizard},
	{"Hide_Ok", 'H', PrivCanHide, PrivCanHide},
	{"Open", 'o', PrivOpen, PrivOpen},
	{"NoTitles", 0, PrivNoTitles, PrivNoTitles},
	{"NoNames", 0, PrivNoNames, PrivNoNames},
	{"NoCemit", 'C', PrivNoCemit, PrivNoCemit},
	{"Interact", 'I', PrivInteract, PrivInteract},
}

var memberTable = []privEntry{
	{"Hide", 'H', Privs(MemberHide), Privs(MemberHide)},
	{"Quiet", 'Q', Privs(MemberQuiet), Privs(MemberQuiet)},
	{"Gag", 'G', Privs(MemberGag), Privs(MemberGag)},
	{"Combine", 'C', Privs(MemberCombine), Privs(MemberCombine)},
}

func lettersToPrivs(table []privEntry, s string) Privs {
	var p Privs
	for i := 0; i < len(s); i++ {
		for _, e := range table {
			if e.letter != 0 && e.letter == s[i] {
				p |= e.set
				break
			}
		}
	}
	return p
}

// ParsePrivs applies a space separated list of privilege names to current.
// Names match by case-insensitive prefix; a leading ! clears. A single word
// that matches no name is read as a string of letters.
func ParsePrivs(s string, current Privs) Privs {
	words := strings.Fields(s)
	if len(words) == 0 {
		return current
	}
	var yes, no Privs
	for _, w := range words {
		not := false
		if w[0] == '!' {
			not = true
			w = w[1:]
			if w == "" {
				continue
			}
		}
		var bits Privs
		if len(w) == 1 {
			bits = lettersToPrivs(privTable, w)
		}
		if bits == 0 {
			lw := strings.ToLower(w)
			for _, e := range privTable {
				if strings.HasPrefix(strings.ToLower(e.name), lw) {
					bits = e.set
					break
				}
			}
		}
		if not {
			no |= bits
		} else {
			yes |= bits
		}
	}
	if yes == 0 && no == 0 && len(words) == 1 {
		return current | lettersToPrivs(privTable, words[0])
	}
	return (current | yes) &^ no
}

func privsString(table []privEntry, p Privs, sep string) string {
	var out []string
	for _, e := range table {
		if p&e.show != 0 {
			out = append(out, e.name)
			p &^= e.set
		}
	}
	return strings.Join(out, sep)
}

func privsLetters(table []privEntry, p Privs) string {
	var sb strings.Builder
	for _, e := range table {
		if p&e.show != 0 && e.letter != 0 {
			sb.WriteByte(e.letter)
			p &^= e.set
		}
	}
	return sb.String()
}

// String lists the privilege names, space separated.
func (p Privs) String() string { return privsString(privTable, p, " ") }

// Letters encodes the privileges as letters.
func (p Privs) Letters() string { return privsLetters(privTable, p) }

// String lists the member flag names, space separated.
func (f MemberFlags) String() string { return privsString(memberTable, Privs(f), " ") }

// Letters encodes the member flags as letters.
func (f MemberFlags) Letters() string { return privsLetters(memberTable, Privs(f)) }
