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
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var errCopy = errors.New("copy failed")

// counters tracks the lifecycle of tracked elements.
type counters struct {
	constructed int
	destroyed   int
	// copiesLeft is the number of copies that succeed before Copy starts
	// failing. A negative value never fails.
	copiesLeft int
}

func (c *counters) live() int {
	return c.constructed - c.destroyed
}

// tracked owns a heap allocated int and can fail to copy.
type tracked struct {
	v *int
	c *counters
}

func newTracked(c *counters, v int) tracked {
	c.constructed++
	return tracked{v: &v, c: c}
}

func (t *tracked) Destroy() {
	t.c.destroyed++
}

func (t *tracked) Copy() (tracked, error) {
	if t.c.copiesLeft == 0 {
		return tracked{}, errCopy
	}
	if t.c.copiesLeft > 0 {
		t.c.copiesLeft--
	}
	return newTracked(t.c, *t.v), nil
}

// cloned owns a heap allocated int and copies cannot fail.
type cloned struct {
	v *int
}

func (c cloned) Clone() cloned {
	v := *c.v
	return cloned{v: &v}
}

// resource owns a heap allocated int and can only be moved.
type resource struct {
	v *int
	c *counters
}

func newResource(c *counters, v int) resource {
	c.constructed++
	return resource{v: &v, c: c}
}

func (r *resource) Destroy() {
	r.c.destroyed++
}

func trackedValues(v *Vector[tracked]) []int {
	var r []int
	for _, e := range v.Slice() {
		r = append(r, *e.v)
	}
	return r
}

func makeTracked(t *testing.T, c *counters, vals ...int) *Vector[tracked] {
	v := New[tracked]()
	for _, x := range vals {
		require.NoError(t, v.Append(newTracked(c, x)))
	}
	return v
}

func TestTraits(t *testing.T) {
	type plain struct {
		a int
		b [4]float64
	}
	type withString struct {
		a int
		s string
	}
	type both struct {
		cloned
	}
	testCases := []struct {
		name     string
		tr       *traits
		expected kind
	}{
		{"int", traitsOf[int](), trivial},
		{"plain", traitsOf[plain](), trivial},
		{"empty-array", traitsOf[[0]*int](), trivial},
		{"string", traitsOf[string](), nothrow},
		{"pointer", traitsOf[*int](), nothrow},
		{"withString", traitsOf[withString](), nothrow},
		{"cloned", traitsOf[cloned](), nothrow},
		{"tracked", traitsOf[tracked](), fallible},
		{"resource", traitsOf[resource](), nothrow},
	}
	for _, c := range testCases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.expected, c.tr.kind, c.tr.kind.String())
		})
	}

	require.True(t, traitsOf[tracked]().destroy)
	require.False(t, traitsOf[tracked]().clone)
	require.True(t, traitsOf[cloned]().clone)
	require.False(t, traitsOf[cloned]().destroy)
	require.False(t, traitsOf[both]().clone, "Clone returns cloned, not both")
	require.True(t, traitsOf[resource]().noCopy)
	require.False(t, traitsOf[tracked]().noCopy)
	require.False(t, traitsOf[cloned]().noCopy)
	require.False(t, traitsOf[string]().noCopy)

	// Traits are computed once per type.
	require.Same(t, traitsOf[tracked](), traitsOf[tracked]())
}

func TestConstruction(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		v := New[int]()
		require.Equal(t, 0, v.Len())
		require.Equal(t, 0, v.Cap())
		require.True(t, v.IsEmpty())
		require.Empty(t, v.Slice())
	})

	t.Run("fill", func(t *testing.T) {
		v, err := Make(6, 42)
		require.NoError(t, err)
		require.Equal(t, 6, v.Len())
		require.GreaterOrEqual(t, v.Cap(), 6)
		for i := 0; i < v.Len(); i++ {
			require.Equal(t, 42, v.At(i))
		}
	})

	t.Run("of", func(t *testing.T) {
		v, err := Of([]string{"a", "b", "c"})
		require.NoError(t, err)
		require.Equal(t, []string{"a", "b", "c"}, v.Slice())
	})

	t.Run("fill-cloned", func(t *testing.T) {
		x := 7
		v, err := Make(3, cloned{&x})
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			require.Equal(t, 7, *v.At(i).v)
			require.NotSame(t, &x, v.At(i).v)
		}
	})

	t.Run("fill-tracked", func(t *testing.T) {
		c := &counters{copiesLeft: -1}
		elem := newTracked(c, 9)
		v, err := Make(3, elem)
		require.NoError(t, err)
		require.Equal(t, []int{9, 9, 9}, trackedValues(v))
		require.Equal(t, 4, c.live())
		v.Close()
		require.Equal(t, 1, c.live())
	})

	t.Run("fill-tracked-fails", func(t *testing.T) {
		c := &counters{copiesLeft: 2}
		elem := newTracked(c, 9)
		v, err := Make(3, elem)
		require.True(t, errors.Is(err, errCopy))
		require.Nil(t, v)
		require.Equal(t, 1, c.live())
	})
}

func TestAppendPop(t *testing.T) {
	const n = 1024
	v := New[int]()
	require.True(t, v.IsEmpty())
	for i := 0; i < n; i++ {
		require.Equal(t, i, v.Len())
		require.NoError(t, v.Append(i))
	}
	require.Equal(t, n, v.Len())
	for i := 0; i < n; i++ {
		require.Equal(t, i, v.At(i))
	}

	for i := 0; i < n/2; i++ {
		v.Pop()
	}
	require.Equal(t, n/2, v.Len())

	for i := 0; i < n/2; i++ {
		require.NoError(t, v.Append(n/2+i+1))
	}
	require.Equal(t, n, v.Len())
	for i := 0; i < n; i++ {
		if i < n/2 {
			require.Equal(t, i, v.At(i))
		} else {
			require.Equal(t, i+1, v.At(i))
		}
	}

	require.NoError(t, v.ShrinkToFit())
	require.Equal(t, v.Len(), v.Cap())

	var other []int
	v.All(func(i, elem int) bool {
		require.Equal(t, len(other), i)
		other = append(other, elem)
		return true
	})
	require.Equal(t, other, v.Slice())

	for range n {
		v.Pop()
	}
	require.True(t, v.IsEmpty())
	require.NoError(t, v.ShrinkToFit())
	require.Equal(t, 0, v.Cap())
}

func TestGrowth(t *testing.T) {
	v := New[int]()
	var caps []int
	for i := 0; i < 100; i++ {
		require.NoError(t, v.Append(i))
		if len(caps) == 0 || caps[len(caps)-1] != v.Cap() {
			caps = append(caps, v.Cap())
		}
	}
	require.Equal(t, []int{4, 10, 19, 32, 52, 82, 127}, caps)

	require.NoError(t, v.Reserve(50))
	require.Equal(t, 127, v.Cap())
	require.NoError(t, v.Reserve(200))
	require.Equal(t, 200, v.Cap())
	for i := 0; i < 100; i++ {
		require.Equal(t, i, v.At(i))
	}
}

func TestNonTrivial(t *testing.T) {
	t.Run("pointers", func(t *testing.T) {
		v := New[*int]()
		for i := 0; i < 128; i++ {
			require.Equal(t, i, v.Len())
			x := i
			require.NoError(t, v.Append(&x))
			require.Equal(t, i, *v.At(i))
		}
	})

	t.Run("cloned", func(t *testing.T) {
		v := New[cloned]()
		for i := 0; i < 128; i++ {
			x := i
			elem := cloned{&x}
			require.NoError(t, v.AppendCopy(&elem))
			require.Equal(t, i, *v.At(i).v)
			require.NotSame(t, &x, v.At(i).v)
		}
	})

	t.Run("tracked", func(t *testing.T) {
		c := &counters{copiesLeft: -1}
		v := New[tracked]()
		for i := 0; i < 128; i++ {
			require.Equal(t, i, v.Len())
			require.NoError(t, v.Append(newTracked(c, i)))
			require.Equal(t, i, *v.At(i).v)
		}
		// Moving elements during growth does not destroy them.
		require.Equal(t, 0, c.destroyed)
		require.Equal(t, 128, c.live())
		v.Close()
		require.Equal(t, 0, c.live())
	})
}

func TestCloneIndependence(t *testing.T) {
	a, err := Of([]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})
	require.NoError(t, err)
	require.NoError(t, a.Append(10))

	b, err := a.Clone()
	require.NoError(t, err)
	require.Equal(t, a.Slice(), b.Slice())
	require.Equal(t, b.Len(), b.Cap())

	b.Set(0, 100)
	require.NoError(t, b.Append(11))
	require.Equal(t, 0, a.At(0))
	require.Equal(t, 11, a.Len())
	require.Equal(t, 100, b.At(0))

	empty, err := New[int]().Clone()
	require.NoError(t, err)
	require.Equal(t, 0, empty.Cap())
}

func TestNotCopyable(t *testing.T) {
	c := &counters{}
	a := New[resource]()
	for i := 0; i < 5; i++ {
		require.NoError(t, a.Append(newResource(c, i)))
	}

	b, err := a.Clone()
	require.True(t, errors.Is(err, ErrNotCopyable))
	require.Nil(t, b)

	dst := New[resource]()
	require.NoError(t, dst.Append(newResource(c, 100)))
	require.NoError(t, dst.Reserve(10))
	err = dst.CopyFrom(a)
	require.True(t, errors.Is(err, ErrNotCopyable))
	require.Equal(t, 1, dst.Len())
	require.Equal(t, 100, *dst.At(0).v)

	elem := newResource(c, 6)
	err = a.AppendCopy(&elem)
	require.True(t, errors.Is(err, ErrNotCopyable))
	require.Equal(t, 5, a.Len())

	m, err := Make(3, elem)
	require.True(t, errors.Is(err, ErrNotCopyable))
	require.Nil(t, m)
	require.Equal(t, 7, c.constructed)

	// Moves do not copy.
	require.NoError(t, a.Append(elem))
	moved := a.Move()
	require.Equal(t, 6, moved.Len())
	dst.MoveFrom(moved)
	require.Equal(t, 6, dst.Len())

	// Copying nothing is allowed.
	require.NoError(t, dst.CopyFrom(New[resource]()))
	require.Equal(t, 0, dst.Len())

	// Every element was destroyed exactly once.
	require.Equal(t, 7, c.constructed)
	require.Equal(t, 7, c.destroyed)
}

func TestCloneCloned(t *testing.T) {
	a := New[cloned]()
	for i := 0; i < 10; i++ {
		x := i
		require.NoError(t, a.Append(cloned{&x}))
	}
	b, err := a.Clone()
	require.NoError(t, err)
	*b.At(3).v = 33
	require.Equal(t, 3, *a.At(3).v)
}

func TestMove(t *testing.T) {
	a, err := Make(6, 44)
	require.NoError(t, err)
	b := a.Move()
	require.Equal(t, 0, a.Len())
	require.Equal(t, 0, a.Cap())
	require.Equal(t, 6, b.Len())
	for i := 0; i < b.Len(); i++ {
		require.Equal(t, 44, b.At(i))
	}

	// The moved-from vector is reusable.
	require.NoError(t, a.Append(1))
	require.Equal(t, []int{1}, a.Slice())
}

func TestMoveFrom(t *testing.T) {
	c := &counters{copiesLeft: -1}
	a := makeTracked(t, c, 1, 2, 3, 4, 5)
	b := makeTracked(t, c, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15)

	b.MoveFrom(a)
	require.Equal(t, 0, a.Len())
	require.Equal(t, 0, a.Cap())
	require.Equal(t, []int{1, 2, 3, 4, 5}, trackedValues(b))
	// b's previous elements were destroyed.
	require.Equal(t, 10, c.destroyed)
	require.Equal(t, 5, c.live())

	b.MoveFrom(b)
	require.Equal(t, 5, b.Len())
}

func TestCopyFrom(t *testing.T) {
	astr := strings.Repeat("a", 27)
	bstr := strings.Repeat("b", 31)

	t.Run("larger-to-smaller", func(t *testing.T) {
		src, err := Make(99, astr)
		require.NoError(t, err)
		dst, err := Make(42, bstr)
		require.NoError(t, err)

		require.NoError(t, dst.CopyFrom(src))
		require.Equal(t, 99, dst.Len())
		require.Equal(t, 99, dst.Cap())
		require.Equal(t, src.Slice(), dst.Slice())
	})

	t.Run("smaller-to-larger", func(t *testing.T) {
		src, err := Make(42, astr)
		require.NoError(t, err)
		dst, err := Make(99, bstr)
		require.NoError(t, err)

		require.NoError(t, dst.CopyFrom(src))
		require.Equal(t, 42, dst.Len())
		// The existing buffer was reused.
		require.Equal(t, 99, dst.Cap())
		require.Equal(t, src.Slice(), dst.Slice())
		require.Equal(t, 42, src.Len())
	})

	t.Run("grow-within-capacity", func(t *testing.T) {
		src, err := Of([]int{1, 2, 3, 4, 5})
		require.NoError(t, err)
		dst, err := Of([]int{9, 9})
		require.NoError(t, err)
		require.NoError(t, dst.Reserve(10))

		require.NoError(t, dst.CopyFrom(src))
		require.Equal(t, []int{1, 2, 3, 4, 5}, dst.Slice())
		require.Equal(t, 10, dst.Cap())
	})

	t.Run("self", func(t *testing.T) {
		v, err := Of([]int{1, 2, 3})
		require.NoError(t, err)
		require.NoError(t, v.CopyFrom(v))
		require.Equal(t, []int{1, 2, 3}, v.Slice())
	})
}

func TestCopyFromDestroys(t *testing.T) {
	c := &counters{copiesLeft: -1}
	src := makeTracked(t, c, 1, 2, 3)
	dst := makeTracked(t, c, 4, 5, 6, 7, 8)
	require.NoError(t, dst.Reserve(20))

	require.NoError(t, dst.CopyFrom(src))
	require.Equal(t, []int{1, 2, 3}, trackedValues(dst))
	// Copies that can fail always go into a buffer sized to the source.
	require.Equal(t, 3, dst.Cap())
	require.Equal(t, 5, c.destroyed)
	require.Equal(t, 6, c.live())

	src.Close()
	dst.Close()
	require.Equal(t, 0, c.live())
}

func TestFallibleCopy(t *testing.T) {
	t.Run("clone", func(t *testing.T) {
		c := &counters{copiesLeft: -1}
		a := makeTracked(t, c, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9)
		c.copiesLeft = 5

		b, err := a.Clone()
		require.Error(t, err)
		require.True(t, errors.Is(err, errCopy))
		require.Nil(t, b)
		// The five copies made were destroyed again.
		require.Equal(t, 15, c.constructed)
		require.Equal(t, 10, c.live())
		require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, trackedValues(a))
	})

	t.Run("copy-from", func(t *testing.T) {
		c := &counters{copiesLeft: -1}
		src := makeTracked(t, c, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9)
		dst := makeTracked(t, c, 100, 101, 102)
		capacity := dst.Cap()
		c.copiesLeft = 4

		err := dst.CopyFrom(src)
		require.True(t, errors.Is(err, errCopy))
		require.Equal(t, []int{100, 101, 102}, trackedValues(dst))
		require.Equal(t, capacity, dst.Cap())
		require.Equal(t, 13, c.live())
		require.Equal(t, 10, src.Len())
	})

	t.Run("append-copy", func(t *testing.T) {
		c := &counters{copiesLeft: 0}
		v := makeTracked(t, c, 1, 2)
		elem := newTracked(c, 3)

		err := v.AppendCopy(&elem)
		require.True(t, errors.Is(err, errCopy))
		require.Equal(t, []int{1, 2}, trackedValues(v))
		require.Equal(t, 3, c.live())

		c.copiesLeft = -1
		require.NoError(t, v.AppendCopy(&elem))
		require.Equal(t, []int{1, 2, 3}, trackedValues(v))
		require.NotSame(t, elem.v, v.At(2).v)
		require.Equal(t, 4, c.live())
	})
}

func TestEmplace(t *testing.T) {
	v := New[[]string]()
	require.NoError(t, v.Emplace(func(elem *[]string) error {
		*elem = append(*elem, "x", "y")
		return nil
	}))
	require.Equal(t, [][]string{{"x", "y"}}, v.Slice())

	err := v.Emplace(func(elem *[]string) error {
		*elem = append(*elem, "z")
		return errCopy
	})
	require.True(t, errors.Is(err, errCopy))
	require.Equal(t, 1, v.Len())
}

func TestErase(t *testing.T) {
	t.Run("single-trivial", func(t *testing.T) {
		v := New[int]()
		for i := 0; i < 10; i++ {
			require.NoError(t, v.Append(i))
		}

		// remove 5
		i := v.Erase(5)
		require.Equal(t, 9, v.Len())
		require.Equal(t, 6, v.At(i))

		// remove 9
		i = v.Erase(v.Len() - 1)
		require.Equal(t, 8, v.Len())
		require.Equal(t, v.Len(), i)

		// remove 0
		i = v.Erase(0)
		require.Equal(t, 7, v.Len())
		require.Equal(t, 1, v.At(i))

		require.Equal(t, []int{1, 2, 3, 4, 6, 7, 8}, v.Slice())
	})

	t.Run("single-string", func(t *testing.T) {
		v := New[string]()
		for i := 0; i < 10; i++ {
			require.NoError(t, v.Append(strconv.Itoa(i)))
		}

		i := v.Erase(5)
		require.Equal(t, 9, v.Len())
		require.Equal(t, "6", v.At(i))

		i = v.Erase(v.Len() - 1)
		require.Equal(t, v.Len(), i)

		i = v.Erase(0)
		require.Equal(t, "1", v.At(i))

		require.Equal(t, []string{"1", "2", "3", "4", "6", "7", "8"}, v.Slice())
		// The vacated tail was zeroed.
		require.Equal(t, "", v.data[v.Len()])
	})

	t.Run("range", func(t *testing.T) {
		v, err := Of([]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})
		require.NoError(t, err)
		i := v.EraseRange(2, 7)
		require.Equal(t, 2, i)
		require.Equal(t, []int{0, 1, 7, 8, 9}, v.Slice())
		require.Equal(t, 7, v.At(i))

		require.Equal(t, 5, v.EraseRange(5, 5))
		require.Equal(t, 5, v.Len())

		i = v.EraseRange(3, 5)
		require.Equal(t, v.Len(), i)
		require.Equal(t, []int{0, 1, 7}, v.Slice())

		require.Equal(t, 0, v.EraseRange(0, v.Len()))
		require.True(t, v.IsEmpty())
	})

	t.Run("range-tracked", func(t *testing.T) {
		c := &counters{copiesLeft: -1}
		v := makeTracked(t, c, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9)
		i := v.EraseRange(2, 7)
		require.Equal(t, 2, i)
		require.Equal(t, []int{0, 1, 7, 8, 9}, trackedValues(v))
		require.Equal(t, 5, c.destroyed)
		for _, e := range v.data[v.Len():] {
			require.Nil(t, e.v)
		}

		v.Pop()
		require.Equal(t, 6, c.destroyed)
		v.Clear()
		require.Equal(t, 0, c.live())
		require.Equal(t, 0, v.Len())
		require.NotZero(t, v.Cap())
	})
}

func TestSet(t *testing.T) {
	c := &counters{copiesLeft: -1}
	v := makeTracked(t, c, 1, 2, 3)
	v.Set(1, newTracked(c, 20))
	require.Equal(t, []int{1, 20, 3}, trackedValues(v))
	require.Equal(t, 1, c.destroyed)

	*v.Ptr(2).v = 30
	require.Equal(t, []int{1, 20, 30}, trackedValues(v))
}

func TestRandom(t *testing.T) {
	v := New[string]()
	var e []string
	for i := 0; i < 10000; i++ {
		switch r := rand.Float64(); {
		case r < 0.5:
			s := fmt.Sprint(rand.Int())
			require.NoError(t, v.Append(s))
			e = append(e, s)
		case r < 0.65:
			if len(e) > 0 {
				v.Pop()
				e = e[:len(e)-1]
			}
		case r < 0.8:
			if len(e) > 0 {
				first := rand.Intn(len(e))
				last := first + rand.Intn(min(4, len(e)-first)+1)
				require.Equal(t, first, v.EraseRange(first, last))
				e = append(e[:first], e[last:]...)
			}
		case r < 0.95:
			if len(e) > 0 {
				j := rand.Intn(len(e))
				v.Set(j, "set")
				e[j] = "set"
			}
		default:
			c, err := v.Clone()
			require.NoError(t, err)
			require.NoError(t, v.CopyFrom(c))
			require.NoError(t, v.ShrinkToFit())
		}
		require.Equal(t, len(e), v.Len())
		require.LessOrEqual(t, v.Len(), v.Cap())
	}
	require.Equal(t, len(e), len(v.Slice()))
	for i := range e {
		require.Equal(t, e[i], v.At(i))
	}
}

type countingAllocator[T any] struct {
	fail   bool
	allocs int
	frees  int
}

func (a *countingAllocator[T]) Alloc(n int) []T {
	if a.fail {
		return nil
	}
	a.allocs++
	return make([]T, n)
}

func (a *countingAllocator[T]) Free(_ []T) {
	a.frees++
}

func TestAllocator(t *testing.T) {
	a := &countingAllocator[int]{}
	v := New[int](WithAllocator[int](a))
	for i := 0; i < 20; i++ {
		require.NoError(t, v.Append(i))
	}
	// 0 -> 4 -> 10 -> 19 -> 32
	require.Equal(t, 4, a.allocs)
	require.Equal(t, 3, a.frees)

	c, err := v.Clone()
	require.NoError(t, err)
	require.Equal(t, 5, a.allocs)

	v.Close()
	require.Equal(t, 4, a.frees)
	require.Equal(t, 0, v.Cap())
	c.Close()
	require.Equal(t, 5, a.frees)
}

func TestAllocationFailure(t *testing.T) {
	a := &countingAllocator[tracked]{}
	c := &counters{copiesLeft: -1}
	v := New[tracked](WithAllocator[tracked](a))
	for i := 0; i < 4; i++ {
		require.NoError(t, v.Append(newTracked(c, i)))
	}
	require.Equal(t, v.Cap(), v.Len())

	a.fail = true
	elem := newTracked(c, 4)
	err := v.Append(elem)
	require.True(t, errors.Is(err, ErrAllocFailed))
	require.Equal(t, 4, v.Len())
	require.Equal(t, 4, v.Cap())
	require.Equal(t, []int{0, 1, 2, 3}, trackedValues(v))

	// The copy made for the append is destroyed again.
	err = v.AppendCopy(&elem)
	require.True(t, errors.Is(err, ErrAllocFailed))
	require.Equal(t, 5, c.live())

	_, err = v.Clone()
	require.True(t, errors.Is(err, ErrAllocFailed))
	require.Equal(t, 5, c.live())

	require.True(t, errors.Is(v.Reserve(100), ErrAllocFailed))
	require.Equal(t, 4, v.Cap())

	a.fail = false
	require.NoError(t, v.Append(elem))
	require.Equal(t, []int{0, 1, 2, 3, 4}, trackedValues(v))
	require.Equal(t, 10, v.Cap())
}

func TestOfOptions(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	a := &countingAllocator[int]{}
	v, err := Of([]int{1, 2, 3}, WithAllocator[int](a), WithLogger[int](zap.New(core)))
	require.NoError(t, err)
	require.Equal(t, 1, a.allocs)
	require.Equal(t, 3, v.Cap())

	require.NoError(t, v.Append(4))
	require.Equal(t, 2, a.allocs)
	require.Equal(t, 1, a.frees)
	require.Equal(t, 1, logs.FilterMessage("vector: reallocated").Len())

	a.fail = true
	_, err = Of([]int{1}, WithAllocator[int](a))
	require.True(t, errors.Is(err, ErrAllocFailed))
}

func TestLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	a := &countingAllocator[int]{}
	v := New[int](WithLogger[int](zap.New(core)), WithAllocator[int](a))
	for i := 0; i < 5; i++ {
		require.NoError(t, v.Append(i))
	}
	// 0 -> 4 -> 10
	entries := logs.FilterMessage("vector: reallocated").All()
	require.Len(t, entries, 2)
	require.EqualValues(t, 4, entries[1].ContextMap()["capacity"])
	require.EqualValues(t, 10, entries[1].ContextMap()["new-capacity"])
	require.Equal(t, "trivial", entries[1].ContextMap()["kind"])

	a.fail = true
	require.Error(t, v.Reserve(64))
	require.Equal(t, 1, logs.FilterMessage("vector: allocation failed").Len())
}
