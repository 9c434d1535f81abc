package colorhist

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxArity is the largest number of elements a Key can hold.
const MaxArity = 8

// Element is the set of small fixed-width integer types a Key can be built from.
type Element interface {
	~int8 | ~int16 | ~int32 | ~uint8 | ~uint16 | ~uint32
}

// Key is an immutable tuple of Arity() elements, ordered lexicographically.
//
// The body is a fixed-size array, so a Key is copied by value, never aliases
// caller storage, and is comparable with == (it can be used as a map key).
// Unused trailing slots are always zero.
type Key[T Element] struct {
	body  [MaxArity]T
	arity uint8
}

// NewKey copies elems into a new Key. It returns an error if elems is empty
// or longer than MaxArity.
func NewKey[T Element](elems ...T) (Key[T], error) {
	var k Key[T]
	if len(elems) == 0 || len(elems) > MaxArity {
		return k, fmt.Errorf("colorhist: key arity must be in [1, %d], got %d: %w", MaxArity, len(elems), ErrArity)
	}
	copy(k.body[:], elems)
	k.arity = uint8(len(elems))
	return k, nil
}

// MustKey is like NewKey but panics on an invalid arity.
func MustKey[T Element](elems ...T) Key[T] {
	k, err := NewKey(elems...)
	if err != nil {
		panic(err)
	}
	return k
}

// Arity returns the number of elements in k.
func (k Key[T]) Arity() int { return int(k.arity) }

// At returns the i-th element. It panics if i is outside [0, Arity()).
func (k Key[T]) At(i int) T {
	if i < 0 || i >= int(k.arity) {
		panic(fmt.Sprintf("colorhist: key index %d out of range [0, %d)", i, k.arity))
	}
	return k.body[i]
}

// Elements returns a copy of the key's elements.
func (k Key[T]) Elements() []T {
	out := make([]T, k.arity)
	copy(out, k.body[:k.arity])
	return out
}

// Equal reports whether k and other hold the same elements.
func (k Key[T]) Equal(other Key[T]) bool { return k == other }

// Compare returns -1, 0 or +1 depending on whether k sorts before, equal to,
// or after other. The first differing element decides; a shorter key sorts
// before a longer one that it prefixes.
func (k Key[T]) Compare(other Key[T]) int {
	n := min(k.arity, other.arity)
	for i := uint8(0); i < n; i++ {
		a, b := k.body[i], other.body[i]
		if a != b {
			if a < b {
				return -1
			}
			return 1
		}
	}
	switch {
	case k.arity < other.arity:
		return -1
	case k.arity > other.arity:
		return 1
	}
	return 0
}

// Less reports whether k sorts strictly before other.
func (k Key[T]) Less(other Key[T]) bool { return k.Compare(other) < 0 }

// Vector appends the key's coordinates as float64 to dst and returns the
// extended slice.
func (k Key[T]) Vector(dst []float64) []float64 {
	for i := uint8(0); i < k.arity; i++ {
		dst = append(dst, float64(k.body[i]))
	}
	return dst
}

// keyFromVector truncates each coordinate of v back to T. The caller must
// make sure every coordinate is within T's range.
func keyFromVector[T Element](v []float64) Key[T] {
	var k Key[T]
	for i, x := range v {
		k.body[i] = T(x)
	}
	k.arity = uint8(len(v))
	return k
}

func (k Key[T]) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i := uint8(0); i < k.arity; i++ {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatInt(int64(k.body[i]), 10))
	}
	sb.WriteByte(')')
	return sb.String()
}
