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

	"github.com/eeshabandaru/fuel-efficient-route-tracker/feats"
	"gonum.org/v1/gonum/stat"
)

var ErrScalerNotFitted = errors.New("scaler not fitted")

// StandardScaler standardizes features by removing the mean
// and scaling to unit (population) variance.
type StandardScaler struct {
	Mean   feats.FeatureVector `json:"mean"`
	Scale  feats.FeatureVector `json:"scale"`
	Fitted bool                `json:"fitted"`
}

// Fit computes mean and standard deviation of each feature.
// A feature with zero deviation gets scale 1.
func (sc *StandardScaler) Fit(data []feats.FeatureVector) error {
	if len(data) == 0 {
		return ErrScalerNotFitted
	}
	col := make([]float64, len(data))
	for j := 0; j < feats.NumFeatures; j++ {
		for i, v := range data {
			col[i] = v[j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		sc.Mean[j] = mean
		if std == 0 {
			std = 1
		}
		sc.Scale[j] = std
	}
	sc.Fitted = true
	return nil
}

func (sc *StandardScaler) Transform(v feats.FeatureVector) feats.FeatureVector {
	var ans feats.FeatureVector
	for j := range v {
		ans[j] = (v[j] - sc.Mean[j]) / sc.Scale[j]
	}
	return ans
}

func (sc *StandardScaler) TransformAll(data []feats.FeatureVector) []feats.FeatureVector {
	ans := make([]feats.FeatureVector, len(data))
	for i, v := range data {
		ans[i] = sc.Transform(v)
	}
	return ans
}

func (sc *StandardScaler) Inverse(v feats.FeatureVector) feats.FeatureVector {
	var ans feats.FeatureVector
	for j := range v {
		ans[j] = v[j]*sc.Scale[j] + sc.Mean[j]
	}
	return ans
}

// NewFittedScaler creates a scaler fitted on the data
func NewFittedScaler(data []feats.FeatureVector) (*StandardScaler, error) {
	var ans StandardScaler
	if err := ans.Fit(data); err != nil {
		return nil, err
	}
	return &ans, nil
}
