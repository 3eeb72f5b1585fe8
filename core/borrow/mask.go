package borrow

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"github.com/WIGGLES-dev/pobox/internal/reflector"
)

const wordBits = 64

// Mask is a field bitset, one bit per field of a [Layout].
type Mask []uint64

// MaskOf builds a mask with the given field positions set.
func MaskOf(fields ...int) Mask {
	var m Mask
	for _, f := range fields {
		m = m.With(f)
	}
	return m
}

// With returns a copy of m with field i set.
func (m Mask) With(i int) Mask {
	w := i / wordBits
	out := make(Mask, max(len(m), w+1))
	copy(out, m)
	out[w] |= 1 << (uint(i) % wordBits)
	return out
}

// Has reports whether field i is set.
func (m Mask) Has(i int) bool {
	w := i / wordBits
	if i < 0 || w >= len(m) {
		return false
	}
	return m[w]&(1<<(uint(i)%wordBits)) != 0
}

// Intersects reports whether m and o share a set field.
func (m Mask) Intersects(o Mask) bool {
	n := min(len(m), len(o))
	for i := 0; i < n; i++ {
		if m[i]&o[i] != 0 {
			return true
		}
	}
	return false
}

// IsZero reports whether no field is set.
func (m Mask) IsZero() bool {
	for _, w := range m {
		if w != 0 {
			return false
		}
	}
	return true
}

// Count returns the number of set fields.
func (m Mask) Count() int {
	n := 0
	for _, w := range m {
		n += bits.OnesCount64(w)
	}
	return n
}

// Fields returns the set field positions in ascending order.
func (m Mask) Fields() []int {
	var out []int
	for wi, w := range m {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			out = append(out, wi*wordBits+b)
			w &^= 1 << uint(b)
		}
	}
	return out
}

func (m Mask) String() string {
	fs := m.Fields()
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = strconv.Itoa(f)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// Layout numbers the fields of a state type.
type Layout struct {
	n     int
	names map[string]int
}

// NewLayout describes a state with n anonymous fields.
func NewLayout(n int) Layout {
	if n < 1 {
		n = 1
	}
	return Layout{n: n}
}

// LayoutOf numbers the exported fields of struct S in declaration order.
// Non-struct states are treated as a single field.
func LayoutOf[S any]() Layout {
	ti := reflector.TypeInfoFor[S]()
	if len(ti.Fields) == 0 {
		return NewLayout(1)
	}
	l := Layout{n: len(ti.Fields), names: make(map[string]int, len(ti.Fields))}
	for i, f := range ti.Fields {
		l.names[f] = i
	}
	return l
}

// Len returns the number of fields.
func (l Layout) Len() int {
	if l.n == 0 {
		return 1
	}
	return l.n
}

// IsZero reports whether l is the zero Layout, as opposed to one built by
// [NewLayout] or [LayoutOf].
func (l Layout) IsZero() bool { return l.n == 0 }

// Words returns ceil(Len / 64), the length of a normalized mask.
func (l Layout) Words() int { return (l.Len() + wordBits - 1) / wordBits }

// All returns a mask with every field set.
func (l Layout) All() Mask {
	m := make(Mask, l.Words())
	for i := 0; i < l.Len(); i++ {
		m[i/wordBits] |= 1 << (uint(i) % wordBits)
	}
	return m
}

// Mask builds a mask from field positions, rejecting out-of-range ones.
func (l Layout) Mask(fields ...int) (Mask, error) {
	m := make(Mask, l.Words())
	for _, f := range fields {
		if f < 0 || f >= l.Len() {
			return nil, fmt.Errorf("%w: position %d of %d", ErrUnknownField, f, l.Len())
		}
		m[f/wordBits] |= 1 << (uint(f) % wordBits)
	}
	return m, nil
}

// Field builds a mask from field names.
func (l Layout) Field(names ...string) (Mask, error) {
	pos := make([]int, 0, len(names))
	for _, name := range names {
		i, ok := l.names[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
		}
		pos = append(pos, i)
	}
	return l.Mask(pos...)
}

// MustField is like Field but panics on unknown names. Meant for package-level
// access declarations.
func (l Layout) MustField(names ...string) Mask {
	m, err := l.Field(names...)
	if err != nil {
		panic(err)
	}
	return m
}

// normalize pads m to the layout width and rejects bits past the last field.
func (l Layout) normalize(m Mask) (Mask, error) {
	out := make(Mask, l.Words())
	for i, w := range m {
		if w == 0 {
			continue
		}
		if i >= len(out) {
			return nil, fmt.Errorf("%w: mask %s exceeds %d fields", ErrUnknownField, m, l.Len())
		}
		out[i] = w
	}
	if rem := l.Len() % wordBits; rem != 0 && out[len(out)-1]>>uint(rem) != 0 {
		return nil, fmt.Errorf("%w: mask %s exceeds %d fields", ErrUnknownField, m, l.Len())
	}
	return out, nil
}
