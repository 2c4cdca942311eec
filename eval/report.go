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

package eval

import (
	"fmt"
	"math"
	"os"
	"slices"

	"github.com/eeshabandaru/fuel-efficient-route-tracker/feats"
)

type residual struct {
	Target    Target
	RowIdx    int
	Features  feats.FeatureVector
	Truth     float64
	Predicted float64
}

func (r residual) AbsErrorSize() float64 {
	return math.Abs(r.Predicted - r.Truth)
}

type residualReporter interface {
	AddResidual(target Target, rowIdx int, row feats.TrainingRow, predicted float64)
}

// ------------------------

// Reporter collects test split predictions so the worst
// ones can be inspected.
type Reporter struct {
	OutPath   string
	residuals []residual
}

func (reporter *Reporter) AddResidual(target Target, rowIdx int, row feats.TrainingRow, predicted float64) {
	reporter.residuals = append(
		reporter.residuals,
		residual{
			Target:    target,
			RowIdx:    rowIdx,
			Features:  row.Features,
			Truth:     target.Value(row),
			Predicted: predicted,
		},
	)
}

func (reporter *Reporter) sortedResiduals() []residual {
	ans := slices.Clone(reporter.residuals)
	slices.SortStableFunc(
		ans,
		func(v1, v2 residual) int {
			if v1.AbsErrorSize() < v2.AbsErrorSize() {
				return 1

			} else if v1.AbsErrorSize() > v2.AbsErrorSize() {
				return -1
			}
			return 0
		},
	)
	return ans
}

// SaveResiduals writes all the collected predictions sorted by
// absolute error (largest first) as tab-separated values.
func (reporter *Reporter) SaveResiduals() error {
	if reporter.OutPath == "" {
		return fmt.Errorf("report output path is not set")
	}
	f, err := os.Create(reporter.OutPath)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", reporter.OutPath, err)
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "target\trow\t%s\t%s\t%s\ttruth\tpredicted\tabs_error\n",
		feats.FeatureNames[0], feats.FeatureNames[1], feats.FeatureNames[2])
	if err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	for _, item := range reporter.sortedResiduals() {
		_, err := fmt.Fprintf(f, "%s\t%d\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\n",
			item.Target, item.RowIdx, item.Features[0], item.Features[1], item.Features[2],
			item.Truth, item.Predicted, item.AbsErrorSize())
		if err != nil {
			return fmt.Errorf("failed to write to file: %w", err)
		}
	}
	return nil
}
