package data

// Kind tags the variant held by an Entity.
type Kind = byte

const (
	KindString Kind = iota + 1
	KindList
)

// Entity is the value bound to a key: either a byte string or an ordered list of byte strings.
// String contents are never modified in place, a write always installs a new slice.
type Entity struct {
	Kind Kind
	Str  []byte
	List [][]byte
}

// NewString creates a string entity
func NewString(value []byte) *Entity {
	return &Entity{Kind: KindString, Str: value}
}

// NewList creates a list entity holding values in order
func NewList(values [][]byte) *Entity {
	return &Entity{Kind: KindList, List: values}
}

// Clone returns a copy which shares no mutable state with e.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	switch e.Kind {
	case KindList:
		list := make([][]byte, len(e.List))
		copy(list, e.List)
		return &Entity{Kind: KindList, List: list}
	default:
		return &Entity{Kind: e.Kind, Str: e.Str}
	}
}

// Empty reports whether e is a list without elements. Such a list never exists as a key.
func (e *Entity) Empty() bool {
	return e.Kind == KindList && len(e.List) == 0
}

// Len is 1 for strings and the element count for lists.
func (e *Entity) Len() int {
	if e.Kind == KindList {
		return len(e.List)
	}
	return 1
}
