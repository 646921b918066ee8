package flatfile

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/crystal-mush/mushchat/pkg/gamedb"
)

// TinyMUSH comsys channel flags.
const (
	ComsysPublic   = 0x00000010 // anyone can join
	ComsysLoud     = 0x00000020 // connect/disconnect shown
	ComsysObject   = 0x00000200 // objects can join
	ComsysNoTitles = 0x00000400
)

// ComsysChannel is one channel record of a TinyMUSH mod_comsys.db.
type ComsysChannel struct {
	Name            string
	Owner           gamedb.DBRef
	Flags           int
	Charge          int
	ChargeCollected int
	NumSent         int
	Description     string
	Header          string
	JoinLock        string
	TransLock       string
	RecvLock        string
}

// ComsysAlias is one player alias record of a TinyMUSH mod_comsys.db.
type ComsysAlias struct {
	Player    gamedb.DBRef
	Channel   string
	Alias     string
	Title     string
	Listening bool
}

// comsysScanner walks a mod_comsys.db line by line.
type comsysScanner struct {
	s    *bufio.Scanner
	line int
}

func (cs *comsysScanner) next() (string, bool) {
	if !cs.s.Scan() {
		return "", false
	}
	cs.line++
	return strings.TrimSpace(cs.s.Text()), true
}

func (cs *comsysScanner) field(what string) (string, error) {
	line, ok := cs.next()
	if !ok {
		return "", fmt.Errorf("line %d: unexpected EOF reading %s", cs.line, what)
	}
	return line, nil
}

func (cs *comsysScanner) intField(what string) (int, error) {
	line, err := cs.field(what)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(line)
	if err != nil {
		return 0, fmt.Errorf("line %d: bad %s %q: %w", cs.line, what, line, err)
	}
	return n, nil
}

// lock collects lines up to a "-" separator.
func (cs *comsysScanner) lock() string {
	var parts []string
	for {
		line, ok := cs.next()
		if !ok || line == "-" {
			break
		}
		if line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, "\n")
}

// skipRecord consumes lines through the "<" record terminator.
func (cs *comsysScanner) skipRecord() {
	for {
		line, ok := cs.next()
		if !ok || line == "<" {
			return
		}
	}
}

// ParseComsys reads a mod_comsys.db file and returns channels and aliases.
func ParseComsys(r io.Reader) ([]ComsysChannel, []ComsysAlias, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	cs := &comsysScanner{s: sc}

	line, ok := cs.next()
	if !ok {
		return nil, nil, fmt.Errorf("comsys: empty file")
	}
	if !strings.HasPrefix(line, "+V") {
		return nil, nil, fmt.Errorf("comsys: expected +V header, got %q", line)
	}

	var channels []ComsysChannel
	for {
		line, ok = cs.next()
		if !ok || strings.HasPrefix(line, "+V") {
			break
		}
		if line == "" {
			continue
		}
		ch, err := cs.channel(line)
		if err != nil {
			return nil, nil, fmt.Errorf("comsys: parse channel: %w", err)
		}
		channels = append(channels, ch)
	}

	var aliases []ComsysAlias
	for {
		line, ok = cs.next()
		if !ok || line == "*** END OF DUMP ***" {
			break
		}
		if line == "" {
			continue
		}
		ca, err := cs.alias(line)
		if err != nil {
			return nil, nil, fmt.Errorf("comsys: parse alias: %w", err)
		}
		aliases = append(aliases, ca)
	}

	return channels, aliases, sc.Err()
}

func (cs *comsysScanner) channel(nameLine string) (ComsysChannel, error) {
	ch := ComsysChannel{Name: unquote(nameLine)}
	owner, err := cs.intField("owner")
	if err != nil {
		return ch, err
	}
	ch.Owner = gamedb.DBRef(owner)
	for _, f := range []struct {
		what string
		dst  *int
	}{
		{"flags", &ch.Flags},
		{"charge", &ch.Charge},
		{"charge_collected", &ch.ChargeCollected},
		{"num_sent", &ch.NumSent},
	} {
		if *f.dst, err = cs.intField(f.what); err != nil {
			return ch, err
		}
	}
	desc, err := cs.field("description")
	if err != nil {
		return ch, err
	}
	ch.Description = unquote(desc)
	header, err := cs.field("header")
	if err != nil {
		return ch, err
	}
	ch.Header = strings.ReplaceAll(unquote(header), `\e`, "\x1b")
	ch.JoinLock = cs.lock()
	ch.TransLock = cs.lock()
	ch.RecvLock = cs.lock()
	cs.skipRecord()
	return ch, nil
}

func (cs *comsysScanner) alias(refLine string) (ComsysAlias, error) {
	var ca ComsysAlias
	ref, err := strconv.Atoi(refLine)
	if err != nil {
		return ca, fmt.Errorf("line %d: bad player dbref %q: %w", cs.line, refLine, err)
	}
	ca.Player = gamedb.DBRef(ref)
	for _, f := range []struct {
		what string
		dst  *string
	}{
		{"alias channel", &ca.Channel},
		{"alias name", &ca.Alias},
		{"alias title", &ca.Title},
	} {
		v, err := cs.field(f.what)
		if err != nil {
			return ca, err
		}
		*f.dst = unquote(v)
	}
	listening, err := cs.field("listening flag")
	if err != nil {
		return ca, err
	}
	ca.Listening = listening == "1"
	cs.skipRecord()
	return ca, nil
}

// unquote removes surrounding double quotes from a string.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
