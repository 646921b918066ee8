package server

import (
	"strings"

	"github.com/crystal-mush/mushchat/pkg/chat"
	"github.com/crystal-mush/mushchat/pkg/gamedb"
)

// chatFunc is one softcode function exposed through think.
type chatFunc func(s *Server, executor gamedb.DBRef, args []string) string

var chatFunctions = map[string]chatFunc{
	"channels": func(s *Server, ex gamedb.DBRef, args []string) string {
		return s.Chat.Channels(ex, args...)
	},
	"cwho": func(s *Server, ex gamedb.DBRef, args []string) string {
		return s.Chat.Cwho(ex, args...)
	},
	"cflags": func(s *Server, ex gamedb.DBRef, args []string) string {
		return s.Chat.Cflags(ex, false, args...)
	},
	"clflags": func(s *Server, ex gamedb.DBRef, args []string) string {
		return s.Chat.Cflags(ex, true, args...)
	},
	"cdesc":   cinfoFunc("desc"),
	"cbuffer": cinfoFunc("buffer"),
	"cusers":  cinfoFunc("users"),
	"cmsgs":   cinfoFunc("msgs"),
	"ctitle": func(s *Server, ex gamedb.DBRef, args []string) string {
		return s.Chat.Ctitle(ex, fnArg(args, 0), fnArg(args, 1))
	},
	"cstatus": func(s *Server, ex gamedb.DBRef, args []string) string {
		return s.Chat.Cstatus(ex, fnArg(args, 0), fnArg(args, 1))
	},
	"cowner": func(s *Server, ex gamedb.DBRef, args []string) string {
		return s.Chat.Cowner(ex, fnArg(args, 0))
	},
	"cmogrifier": func(s *Server, ex gamedb.DBRef, args []string) string {
		return s.Chat.Cmogrifier(ex, fnArg(args, 0))
	},
	"clock": func(s *Server, ex gamedb.DBRef, args []string) string {
		return s.Chat.Clock(ex, args...)
	},
	"cbufferadd": func(s *Server, ex gamedb.DBRef, args []string) string {
		return s.Chat.Cbufferadd(ex, ex, args...)
	},
	"crecall": func(s *Server, ex gamedb.DBRef, args []string) string {
		return s.Chat.Crecall(ex, args...)
	},
	"comalias": func(s *Server, ex gamedb.DBRef, args []string) string {
		who := ex
		if len(args) > 0 && args[0] != "" {
			who = s.World.Match(ex, args[0])
			if who < 0 {
				return "#-1 NO MATCH"
			}
			if !s.World.Controls(ex, who) && !s.World.Has(ex, chat.PowSeeAll) {
				return "#-1 PERMISSION DENIED"
			}
		}
		return aliasSummary(s.DB, who)
	},
}

func cinfoFunc(field string) chatFunc {
	return func(s *Server, ex gamedb.DBRef, args []string) string {
		return s.Chat.Cinfo(ex, field, fnArg(args, 0))
	}
}

func fnArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

// splitArgs splits a function's argument text on top-level commas.
// Brackets and parentheses nest; a backslash escapes the next byte.
func splitArgs(text string) []string {
	var args []string
	var cur strings.Builder
	depth := 0
	for i := 0; i < len(text); i++ {
		ch := text[i]
		switch {
		case ch == '\\' && i+1 < len(text):
			i++
			cur.WriteByte(text[i])
			continue
		case ch == '(' || ch == '[' || ch == '{':
			depth++
		case (ch == ')' || ch == ']' || ch == '}') && depth > 0:
			depth--
		case ch == ',' && depth == 0:
			args = append(args, strings.TrimSpace(cur.String()))
			cur.Reset()
			continue
		}
		cur.WriteByte(ch)
	}
	return append(args, strings.TrimSpace(cur.String()))
}

// callFunction evaluates text when it is a single call of a known
// function, as in "cwho(Public)". Anything else comes back unchanged.
func callFunction(s *Server, executor gamedb.DBRef, text string) string {
	text = strings.TrimSpace(text)
	open := strings.IndexByte(text, '(')
	if open <= 0 || !strings.HasSuffix(text, ")") {
		return text
	}
	fn, ok := chatFunctions[strings.ToLower(text[:open])]
	if !ok {
		return "#-1 FUNCTION (" + strings.ToUpper(text[:open]) + ") NOT FOUND"
	}
	inner := text[open+1 : len(text)-1]
	var args []string
	if strings.TrimSpace(inner) != "" {
		args = splitArgs(inner)
	}
	return fn(s, executor, args)
}
