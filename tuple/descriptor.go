// Package tuple implements the tuple slot and tuple descriptor data model of
// spec.md §3 (component C1): a typed holder of at most one heap tuple plus
// its descriptor, an ownership flag, and the arena backing any detached copy.
package tuple

// Storage is the on-disk storage class of a variable-length attribute.
type Storage byte

const (
	StoragePlain    Storage = 'p'
	StorageExtended Storage = 'x'
	StorageCompress Storage = 'c'
	StorageMain     Storage = 'm'
)

// Attribute is one column's metadata within a Descriptor. Immutable once
// built, per spec.md §3 "Tuple Descriptor".
type Attribute struct {
	Name     string
	TypeOID  uint32
	Len      int // negative => variable length
	ByVal    bool
	Align    byte
	Storage  Storage
	Typmod   int32
	NotNull  bool
}

// Descriptor is the ordered sequence of attribute metadata describing one
// relation version. Descriptors are treated as immutable; building a new one
// for a schema change is cheaper than mutating a shared descriptor that
// other goroutines may be reading.
type Descriptor struct {
	Attrs []Attribute
}

// NewDescriptor builds a Descriptor from attributes in positional order.
func NewDescriptor(attrs ...Attribute) *Descriptor {
	cp := make([]Attribute, len(attrs))
	copy(cp, attrs)
	return &Descriptor{Attrs: cp}
}

// Len returns the attribute count.
func (d *Descriptor) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Attrs)
}

// AttrByName finds an attribute's 0-based index by name, or -1.
func (d *Descriptor) AttrByName(name string) int {
	for i, a := range d.Attrs {
		if a.Name == name {
			return i
		}
	}
	return -1
}

// Equal reports whether two descriptors describe the same attribute
// sequence (name/type/len/not-null), used by plan nodes to validate that a
// rescan target still matches the slot it is being bound to.
func (d *Descriptor) Equal(other *Descriptor) bool {
	if d == nil || other == nil {
		return d == other
	}
	if len(d.Attrs) != len(other.Attrs) {
		return false
	}
	for i, a := range d.Attrs {
		b := other.Attrs[i]
		if a.Name != b.Name || a.TypeOID != b.TypeOID || a.Len != b.Len || a.NotNull != b.NotNull {
			return false
		}
	}
	return true
}
