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
	"github.com/eeshabandaru/fuel-efficient-route-tracker/feats"
)

// Example is a single (already scaled) training sample
type Example struct {
	Input    feats.FeatureVector
	Response float64
}

// EpochReport describes a finished training epoch
type EpochReport struct {
	Epoch   int
	Loss    float64
	ValLoss float64
}

// EpochCallback is called by a regressor after each training epoch
type EpochCallback func(EpochReport)

// MeanSquaredError calculates MSE of predictions against
// example responses.
func MeanSquaredError(examples []Example, predict func(feats.FeatureVector) float64) float64 {
	if len(examples) == 0 {
		return 0
	}
	var sum float64
	for _, ex := range examples {
		d := predict(ex.Input) - ex.Response
		sum += d * d
	}
	return sum / float64(len(examples))
}
