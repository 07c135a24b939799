// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vector

import (
	"reflect"
	"sync"

	"github.com/cockroachdb/errors"
)

// Destroyer is implemented by element types that own resources which must be
// released when the element is removed from a Vector. Destroy is called on a
// pointer to the element before its slot is zeroed. It is not called for
// elements that are moved between buffers.
//
// A plain copy of a Destroyer would share its resources with the original,
// so such types can only be copied if they also implement Cloner or Copier.
// Otherwise every copying operation returns ErrNotCopyable.
type Destroyer interface {
	Destroy()
}

// Cloner is implemented by element types whose copies must not share state
// with the original. Clone cannot fail.
type Cloner[T any] interface {
	Clone() T
}

// Copier is implemented by element types whose copy can fail. Vector
// operations that copy such elements provide the strong guarantee: when Copy
// returns an error every copy already made is destroyed and the operation
// has no effect.
type Copier[T any] interface {
	Copy() (T, error)
}

// kind selects the strategy used for bulk transfers of elements.
type kind uint8

const (
	// trivial elements contain no pointers and have no lifecycle hooks. They
	// are transferred with copy() and never destroyed.
	trivial kind = iota
	// nothrow elements are transferred element by element. Copies cannot
	// fail.
	nothrow
	// fallible elements implement Copier and no Cloner. Copies are built
	// completely before anything they replace is released.
	fallible
)

func (k kind) String() string {
	switch k {
	case trivial:
		return "trivial"
	case nothrow:
		return "nothrow"
	case fallible:
		return "fallible"
	default:
		return "unknown"
	}
}

// traits describes how elements of one type are copied, moved and destroyed.
// A traits value is computed once per element type.
type traits struct {
	typ     reflect.Type
	kind    kind
	destroy bool
	clone   bool
	// noCopy is set for Destroyer types without a Cloner or Copier.
	noCopy bool
}

var traitsCache sync.Map // map[reflect.Type]*traits

func traitsOf[T any]() *traits {
	typ := reflect.TypeFor[T]()
	if tr, ok := traitsCache.Load(typ); ok {
		return tr.(*traits)
	}

	var p *T
	_, destroy := any(p).(Destroyer)
	_, clone := any(p).(Cloner[T])
	_, fallibleCopy := any(p).(Copier[T])

	tr := &traits{
		typ:     typ,
		destroy: destroy,
		clone:   clone,
		noCopy:  destroy && !clone && !fallibleCopy,
	}
	switch {
	case fallibleCopy && !clone:
		tr.kind = fallible
	case destroy || clone || fallibleCopy || hasPointers(typ):
		tr.kind = nothrow
	default:
		tr.kind = trivial
	}
	actual, _ := traitsCache.LoadOrStore(typ, tr)
	return actual.(*traits)
}

// hasPointers returns true if values of typ reference memory the garbage
// collector has to track.
func hasPointers(typ reflect.Type) bool {
	switch typ.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return false
	case reflect.Array:
		return typ.Len() > 0 && hasPointers(typ.Elem())
	case reflect.Struct:
		for i := 0; i < typ.NumField(); i++ {
			if hasPointers(typ.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// destroyElem releases the element at p and zeroes its slot.
func destroyElem[T any](tr *traits, p *T) {
	if tr.destroy {
		any(p).(Destroyer).Destroy()
	}
	var zero T
	*p = zero
}

// destroyRange destroys every element of s.
func destroyRange[T any](tr *traits, s []T) {
	if tr.kind == trivial {
		return
	}
	for i := range s {
		destroyElem(tr, &s[i])
	}
}

func (tr *traits) errNotCopyable() error {
	return errors.Wrapf(ErrNotCopyable, "vector: %s", tr.typ)
}

// copyElem returns a copy of the element at src.
func copyElem[T any](tr *traits, src *T) (T, error) {
	switch {
	case tr.noCopy:
		var zero T
		return zero, tr.errNotCopyable()
	case tr.clone:
		return any(src).(Cloner[T]).Clone(), nil
	case tr.kind == fallible:
		return any(src).(Copier[T]).Copy()
	default:
		return *src, nil
	}
}

// copyInto copies every element of src into the zeroed prefix of dst. On
// failure the copies already made are destroyed and dst is left zeroed.
func copyInto[T any](tr *traits, dst, src []T) error {
	switch {
	case tr.noCopy:
		if len(src) > 0 {
			return tr.errNotCopyable()
		}
	case tr.kind == trivial || (tr.kind == nothrow && !tr.clone):
		copy(dst, src)
	case tr.kind == nothrow:
		for i := range src {
			dst[i] = any(&src[i]).(Cloner[T]).Clone()
		}
	default:
		for i := range src {
			v, err := any(&src[i]).(Copier[T]).Copy()
			if err != nil {
				destroyRange(tr, dst[:i])
				return errors.Wrapf(err, "vector: copying element %d", i)
			}
			dst[i] = v
		}
	}
	return nil
}

// assignInto copies src over the live elements of dst, destroying each
// element before it is overwritten. Only valid for copyable kinds whose copies
// cannot fail.
func assignInto[T any](tr *traits, dst, src []T) {
	if tr.kind == trivial {
		copy(dst, src)
		return
	}
	for i := range src {
		v, _ := copyElem(tr, &src[i])
		destroyElem(tr, &dst[i])
		dst[i] = v
	}
}

// moveInto transfers every element of src into dst and zeroes src. Moving
// never fails and never calls Destroy.
func moveInto[T any](tr *traits, dst, src []T) {
	copy(dst, src)
	if tr.kind != trivial {
		clear(src)
	}
}

// shiftDown moves s[last:size] to s[first:] and zeroes the vacated tail. The
// range [first, last) must already be destroyed.
func shiftDown[T any](tr *traits, s []T, first, last, size int) {
	if tr.kind == trivial {
		copy(s[first:], s[last:size])
		return
	}
	for i := last; i < size; i++ {
		s[first+i-last] = s[i]
	}
	clear(s[size-(last-first) : size])
}
