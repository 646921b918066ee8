package gamedb

import "strings"

// Well-known attribute names used by the chat system.
const (
	AttrLock         = "LOCK"         // default lock, used by @-indirect keys
	AttrUseLock      = "USELOCK"      // mogrifier use lock
	AttrInteractLock = "INTERACTLOCK" // who may reach this object on interact channels
	AttrChatFormat   = "CHATFORMAT"   // per-recipient channel line template
	AttrMogrifyPfx   = "MOGRIFY`"     // mogrifier stage attributes
	AttrAliasPfx     = "CHANALIAS`"   // channel aliases, value is the channel name
)

// Attr returns the value of the named attribute, matched case-insensitively.
func (o *Object) Attr(name string) (string, bool) {
	for _, a := range o.Attrs {
		if strings.EqualFold(a.Name, name) {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttr sets the named attribute. An empty value clears it.
func (o *Object) SetAttr(name, value string) {
	name = strings.ToUpper(name)
	if value == "" {
		o.ClearAttr(name)
		return
	}
	for i, a := range o.Attrs {
		if strings.EqualFold(a.Name, name) {
			o.Attrs[i].Value = value
			return
		}
	}
	o.Attrs = append(o.Attrs, Attribute{Name: name, Value: value})
}

// ClearAttr removes the named attribute if present.
func (o *Object) ClearAttr(name string) {
	for i, a := range o.Attrs {
		if strings.EqualFold(a.Name, name) {
			o.Attrs = append(o.Attrs[:i], o.Attrs[i+1:]...)
			return
		}
	}
}

// AttrsWithPrefix returns attributes whose names start with prefix, in
// storage order.
func (o *Object) AttrsWithPrefix(prefix string) []Attribute {
	prefix = strings.ToUpper(prefix)
	var out []Attribute
	for _, a := range o.Attrs {
		if strings.HasPrefix(strings.ToUpper(a.Name), prefix) {
			out = append(out, a)
		}
	}
	return out
}
