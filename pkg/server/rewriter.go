package server

import (
	"github.com/crystal-mush/mushchat/pkg/boolexp"
	"github.com/crystal-mush/mushchat/pkg/chat"
	"github.com/crystal-mush/mushchat/pkg/gamedb"
)

// Rewriter runs stage templates stored as attributes. Mogrifier stages live
// in MOGRIFY`<STAGE>, the per-recipient template in CHATFORMAT. Templates
// see the stage arguments as %0-%9, the enactor as %# and its name as %n,
// and the holding object as %!.
type Rewriter struct {
	db *gamedb.Database
}

// NewRewriter returns a Rewriter over db.
func NewRewriter(db *gamedb.Database) *Rewriter { return &Rewriter{db: db} }

func (r *Rewriter) CanUse(actor, obj gamedb.DBRef) bool {
	return useLockPasses(r.db, actor, obj)
}

func stageAttr(stage string) string {
	if stage == chat.StageChatFormat {
		return gamedb.AttrChatFormat
	}
	return gamedb.AttrMogrifyPfx + stage
}

func (r *Rewriter) Invoke(obj gamedb.DBRef, stage string, actor gamedb.DBRef, args []string) (string, bool) {
	o, ok := r.db.Get(obj)
	if !ok {
		return "", false
	}
	tmpl, ok := o.Attr(stageAttr(stage))
	if !ok {
		return "", false
	}
	vars := map[byte]string{
		'#': actor.String(),
		'!': obj.String(),
		'n': "",
	}
	if a, ok := r.db.Get(actor); ok {
		vars['n'] = a.Name
	}
	return boolexp.Expand(tmpl, args, vars), true
}
