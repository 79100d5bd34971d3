package logic

// SourceRef names a configured device or controller endpoint.
type SourceRef string

// ListKind is the shape of a SourceList.
type ListKind int

const (
	ListEmpty ListKind = iota
	ListOne
	ListMany
)

func (k ListKind) String() string {
	switch k {
	case ListEmpty:
		return "empty"
	case ListOne:
		return "one"
	default:
		return "many"
	}
}

// SourceList is an ordered list of sources for one category.
// Index 0 is the primary source and index 1 the secondary.
type SourceList struct {
	refs []SourceRef
}

// NewSourceList builds a list from refs, skipping empty entries.
func NewSourceList(refs ...SourceRef) SourceList {
	var out []SourceRef
	for _, r := range refs {
		if r != "" {
			out = append(out, r)
		}
	}
	return SourceList{refs: out}
}

// Kind reports whether the list is empty, has one element or many.
func (l SourceList) Kind() ListKind {
	switch len(l.refs) {
	case 0:
		return ListEmpty
	case 1:
		return ListOne
	default:
		return ListMany
	}
}

// Len returns the number of sources.
func (l SourceList) Len() int {
	return len(l.refs)
}

// At returns the source at index i. ok is false when i is out of range.
func (l SourceList) At(i int) (SourceRef, bool) {
	if i < 0 || i >= len(l.refs) {
		return "", false
	}
	return l.refs[i], true
}

// All returns a copy of the sources in order.
func (l SourceList) All() []SourceRef {
	out := make([]SourceRef, len(l.refs))
	copy(out, l.refs)
	return out
}

// OptionalSource is a single source that may be unset.
type OptionalSource struct {
	ref SourceRef
	ok  bool
}

// Some returns a set OptionalSource. An empty ref is treated as None.
func Some(ref SourceRef) OptionalSource {
	if ref == "" {
		return None()
	}
	return OptionalSource{ref: ref, ok: true}
}

// None returns an unset OptionalSource.
func None() OptionalSource {
	return OptionalSource{}
}

// Get returns the source and whether it is set.
func (o OptionalSource) Get() (SourceRef, bool) {
	return o.ref, o.ok
}

// Sources is the per-category source configuration for one tick.
type Sources struct {
	Pumps    SourceList
	Solar    SourceList
	Tank     OptionalSource
	Flow     OptionalSource
	Pressure OptionalSource
}
