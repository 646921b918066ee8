package gamedb

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// DBRef is the fundamental object reference type in MUSH.
type DBRef int

const (
	Nothing   DBRef = -1
	Ambiguous DBRef = -2
	Home      DBRef = -3
	NoPerm    DBRef = -4
)

// String renders the reference in #n form.
func (r DBRef) String() string {
	return "#" + strconv.Itoa(int(r))
}

// ObjectType represents the type of a MUSH object.
type ObjectType int

const (
	TypeRoom    ObjectType = 0
	TypeThing   ObjectType = 1
	TypeExit    ObjectType = 2
	TypePlayer  ObjectType = 3
	TypeZone    ObjectType = 4
	TypeGarbage ObjectType = 5
)

func (t ObjectType) String() string {
	switch t {
	case TypeRoom:
		return "ROOM"
	case TypeThing:
		return "THING"
	case TypeExit:
		return "EXIT"
	case TypePlayer:
		return "PLAYER"
	case TypeZone:
		return "ZONE"
	case TypeGarbage:
		return "GARBAGE"
	default:
		return "UNKNOWN"
	}
}

const TypeMask = 0x7

// Flag constants - first word
const (
	FlagWizard  = 0x00000010
	FlagDark    = 0x00000040
	FlagQuiet   = 0x00000800
	FlagGoing   = 0x00004000
	FlagRoyalty = 0x20000000
)

// Flag constants - second word
const (
	Flag2Connected = 0x00000200
)

// Flag constants - third word
const (
	Flag3ChanUseFirstMatch = 0x00000001
)

// Power constants - first word (Powers[0])
const (
	PowAnnounce  = 0x00000004 // Loud on channels
	PowWizardWho = 0x00000040 // Priv_Who
	PowExamAll   = 0x00000080 // See_All
	PowHide      = 0x00000800 // Can_Hide
	PowGuest     = 0x02000000
	PowPassLocks = 0x04000000
)

// Power constants - second word (Powers[1])
const (
	Pow2ChatPrivs = 0x00000080
	Pow2PemitAll  = 0x00000100
	Pow2Nspemit   = 0x00000200
)

// HasPower checks if a power bit is set in the given power word (0 or 1).
func (o *Object) HasPower(word, bit int) bool {
	if word < 0 || word > 1 {
		return false
	}
	return o.Powers[word]&bit != 0
}

// SetPower sets or clears a power bit in the given power word (0 or 1).
func (o *Object) SetPower(word, bit int, set bool) {
	if word < 0 || word > 1 {
		return
	}
	if set {
		o.Powers[word] |= bit
	} else {
		o.Powers[word] &^= bit
	}
}

// BoolExpType represents the type of a boolean lock expression node.
type BoolExpType int

const (
	BoolAnd   BoolExpType = 0
	BoolOr    BoolExpType = 1
	BoolNot   BoolExpType = 2
	BoolConst BoolExpType = 3
	BoolAttr  BoolExpType = 4
	BoolIndir BoolExpType = 5
	BoolCarry BoolExpType = 6
	BoolIs    BoolExpType = 7
	BoolOwner BoolExpType = 8
	BoolEval  BoolExpType = 9
	BoolTrue  BoolExpType = 10
	BoolFalse BoolExpType = 11
)

// BoolExp represents a parsed boolean lock expression.
type BoolExp struct {
	Type   BoolExpType
	Sub1   *BoolExp
	Sub2   *BoolExp
	Thing  DBRef  // object for BoolConst
	Attr   string // attribute name for BoolAttr/BoolEval
	StrVal string // pattern for BoolAttr/BoolEval
}

// Attribute is a named value stored on an object.
type Attribute struct {
	Name  string
	Value string
}

// Object represents a MUSH database object.
type Object struct {
	DBRef    DBRef
	Name     string
	Location DBRef
	Owner    DBRef
	Pennies  int
	Flags    [3]int
	Powers   [2]int
	LastMod  time.Time
	Attrs    []Attribute
}

// ObjType returns the object type from the flags.
func (o *Object) ObjType() ObjectType {
	return ObjectType(o.Flags[0] & TypeMask)
}

// HasFlag checks if a flag bit is set in the first flag word.
func (o *Object) HasFlag(flag int) bool {
	return o.Flags[0]&flag != 0
}

// HasFlag2 checks if a flag bit is set in the second flag word.
func (o *Object) HasFlag2(flag int) bool {
	return o.Flags[1]&flag != 0
}

// HasFlag3 checks if a flag bit is set in the third flag word.
func (o *Object) HasFlag3(flag int) bool {
	return o.Flags[2]&flag != 0
}

// IsGoing returns true if the object is marked for destruction.
func (o *Object) IsGoing() bool {
	return o.HasFlag(FlagGoing)
}

// Database holds the in-memory world the chat system runs against.
type Database struct {
	Objects map[DBRef]*Object
	SavedAt time.Time
}

// NewDatabase creates an empty Database.
func NewDatabase() *Database {
	return &Database{
		Objects: make(map[DBRef]*Object),
	}
}

// Get returns the object for ref if it exists and is not being destroyed.
func (db *Database) Get(ref DBRef) (*Object, bool) {
	obj, ok := db.Objects[ref]
	if !ok || obj.IsGoing() || obj.ObjType() == TypeGarbage {
		return nil, false
	}
	return obj, true
}

// Valid reports whether ref names a live object.
func (db *Database) Valid(ref DBRef) bool {
	_, ok := db.Get(ref)
	return ok
}

// Add stores obj, replacing any object with the same ref.
func (db *Database) Add(obj *Object) {
	db.Objects[obj.DBRef] = obj
}

// NextRef returns the lowest unused non-negative dbref.
func (db *Database) NextRef() DBRef {
	var ref DBRef
	for {
		if _, ok := db.Objects[ref]; !ok {
			return ref
		}
		ref++
	}
}

// LookupPlayer finds a live player by name, case-insensitively.
// A leading '*' is accepted and ignored.
func (db *Database) LookupPlayer(name string) DBRef {
	name = strings.TrimPrefix(strings.TrimSpace(name), "*")
	if name == "" {
		return Nothing
	}
	if name[0] == '#' {
		if n, err := strconv.Atoi(name[1:]); err == nil {
			if obj, ok := db.Get(DBRef(n)); ok && obj.ObjType() == TypePlayer {
				return obj.DBRef
			}
		}
		return Nothing
	}
	for _, obj := range db.Objects {
		if obj.ObjType() == TypePlayer && !obj.IsGoing() && strings.EqualFold(obj.Name, name) {
			return obj.DBRef
		}
	}
	return Nothing
}

// Contents returns the live objects located in ref, ordered by dbref.
func (db *Database) Contents(ref DBRef) []DBRef {
	var out []DBRef
	for r, obj := range db.Objects {
		if obj.Location == ref && r != ref && !obj.IsGoing() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Match resolves name from actor's point of view: "me", "here", "#n",
// "*player", then objects carried by the actor or sharing its location,
// then players anywhere. Returns Nothing or Ambiguous on failure.
func (db *Database) Match(actor DBRef, name string) DBRef {
	name = strings.TrimSpace(name)
	if name == "" {
		return Nothing
	}
	switch strings.ToLower(name) {
	case "me":
		if db.Valid(actor) {
			return actor
		}
		return Nothing
	case "here":
		if obj, ok := db.Get(actor); ok && db.Valid(obj.Location) {
			return obj.Location
		}
		return Nothing
	}
	if name[0] == '#' {
		n, err := strconv.Atoi(name[1:])
		if err != nil || !db.Valid(DBRef(n)) {
			return Nothing
		}
		return DBRef(n)
	}
	if name[0] == '*' {
		return db.LookupPlayer(name)
	}

	found := Nothing
	candidates := db.Contents(actor)
	if obj, ok := db.Get(actor); ok {
		candidates = append(candidates, db.Contents(obj.Location)...)
	}
	for _, ref := range candidates {
		obj := db.Objects[ref]
		if !strings.EqualFold(obj.Name, name) {
			continue
		}
		if found != Nothing && found != ref {
			return Ambiguous
		}
		found = ref
	}
	if found != Nothing {
		return found
	}
	return db.LookupPlayer(name)
}
