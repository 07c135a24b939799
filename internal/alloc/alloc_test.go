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

package alloc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTryMake(t *testing.T) {
	require.Len(t, TryMake[int](0), 0)
	require.Len(t, TryMake[int](17), 17)
	require.Nil(t, TryMake[int](-1))
	require.Nil(t, TryMake[uint64](math.MaxInt))
}
