package boolexp

import "github.com/crystal-mush/mushchat/pkg/gamedb"

// Unparse converts a tree back to a human-readable lock string, naming
// objects as Name(#n).
func Unparse(db *gamedb.Database, b *gamedb.BoolExp) string {
	return unparse(b, func(ref gamedb.DBRef) string {
		if obj, ok := db.Get(ref); ok && obj.Name != "" {
			return obj.Name + "(" + ref.String() + ")"
		}
		return ref.String()
	})
}

// Serialize converts a tree to the #dbref form suitable for re-parsing.
func Serialize(b *gamedb.BoolExp) string {
	return unparse(b, gamedb.DBRef.String)
}

func unparse(b *gamedb.BoolExp, name func(gamedb.DBRef) string) string {
	if b == nil {
		return ""
	}
	switch b.Type {
	case gamedb.BoolTrue:
		return "#true"
	case gamedb.BoolFalse:
		return "#false"
	case gamedb.BoolAnd:
		// Wrap OR children in parens (lower precedence)
		left := unparse(b.Sub1, name)
		if b.Sub1 != nil && b.Sub1.Type == gamedb.BoolOr {
			left = "(" + left + ")"
		}
		right := unparse(b.Sub2, name)
		if b.Sub2 != nil && b.Sub2.Type == gamedb.BoolOr {
			right = "(" + right + ")"
		}
		return left + "&" + right
	case gamedb.BoolOr:
		return unparse(b.Sub1, name) + "|" + unparse(b.Sub2, name)
	case gamedb.BoolNot:
		sub := unparse(b.Sub1, name)
		if b.Sub1 != nil && (b.Sub1.Type == gamedb.BoolAnd || b.Sub1.Type == gamedb.BoolOr) {
			sub = "(" + sub + ")"
		}
		return "!" + sub
	case gamedb.BoolConst:
		return name(b.Thing)
	case gamedb.BoolAttr:
		return b.Attr + ":" + b.StrVal
	case gamedb.BoolEval:
		return b.Attr + "/" + b.StrVal
	case gamedb.BoolIndir:
		return "@" + unparse(b.Sub1, name)
	case gamedb.BoolCarry:
		return "+" + unparse(b.Sub1, name)
	case gamedb.BoolIs:
		return "=" + unparse(b.Sub1, name)
	case gamedb.BoolOwner:
		return "$" + unparse(b.Sub1, name)
	}
	return "?"
}
