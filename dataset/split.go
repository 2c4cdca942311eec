// Copyright 2025 Tomas Machalek <tomas.machalek@gmail.com>
// Copyright 2025 Department of Linguistics,
// Faculty of Arts, Charles University
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dataset

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

var ErrTooFewSamples = errors.New("too few samples to split")

// Partition contains row indexes of a training
// and a test subset of a table.
type Partition struct {
	Train []int `json:"train"`
	Test  []int `json:"test"`
}

// Split creates a random train/test partition of n rows. The size
// of the test part is ceil(n * testRatio). For the same n, ratio and seed
// the result is always the same.
func Split(n int, testRatio float64, seed uint64) (Partition, error) {
	if testRatio <= 0 || testRatio >= 1 {
		return Partition{}, fmt.Errorf("invalid test ratio %v", testRatio)
	}
	nTest := int(math.Ceil(float64(n) * testRatio))
	if nTest == 0 || n-nTest == 0 {
		return Partition{}, fmt.Errorf("%w (%d)", ErrTooFewSamples, n)
	}
	perm := rand.New(rand.NewPCG(seed, 0)).Perm(n)
	return Partition{
		Test:  perm[:nTest],
		Train: perm[nTest:],
	}, nil
}

// Tail splits a list of indexes so that the second returned
// list contains the last ceil(len * ratio) items. The first list
// always keeps at least one item.
func Tail(indexes []int, ratio float64) ([]int, []int) {
	if ratio <= 0 || len(indexes) <= 1 {
		return indexes, []int{}
	}
	n := int(math.Ceil(float64(len(indexes)) * ratio))
	if n >= len(indexes) {
		n = len(indexes) - 1
	}
	return indexes[:len(indexes)-n], indexes[len(indexes)-n:]
}
