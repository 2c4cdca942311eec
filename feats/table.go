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

package feats

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/eeshabandaru/fuel-efficient-route-tracker/dataimport"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/vmihailenco/msgpack/v5"
)

// TrainingTable is the output of the feature engineering
type TrainingTable struct {
	Rows   []TrainingRow `msgpack:"rows"`
	Report MergeReport   `msgpack:"report"`
}

func (table *TrainingTable) Len() int {
	return len(table.Rows)
}

// Features returns feature vectors of all the rows
func (table *TrainingTable) Features() []FeatureVector {
	ans := make([]FeatureVector, len(table.Rows))
	for i, row := range table.Rows {
		ans[i] = row.Features
	}
	return ans
}

// DataFrame exports the table with exactly three feature columns
// and two target columns.
func (table *TrainingTable) DataFrame() dataframe.DataFrame {
	cols := make([][]float64, NumFeatures+2)
	for i := range cols {
		cols[i] = make([]float64, len(table.Rows))
	}
	for i, row := range table.Rows {
		for j := 0; j < NumFeatures; j++ {
			cols[j][i] = row.Features[j]
		}
		cols[NumFeatures][i] = row.FuelConsumption
		cols[NumFeatures+1][i] = row.CO2Emissions
	}
	names := append(FeatureNames[:], ColFuelConsumption, dataimport.ColCO2Emissions)
	srs := make([]series.Series, len(cols))
	for i, c := range cols {
		srs[i] = series.New(c, series.Float, names[i])
	}
	return dataframe.New(srs...)
}

func (table *TrainingTable) WriteCSV(w io.Writer) error {
	df := table.DataFrame()
	if df.Err != nil {
		return df.Err
	}
	return df.WriteCSV(w)
}

// SaveTable stores the table to a file. Paths with the `.csv` suffix
// are written as CSV (not loadable back), all other as msgpack.
func SaveTable(table *TrainingTable, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to save training table: %w", err)
	}
	defer f.Close()
	if strings.ToLower(filepath.Ext(path)) == ".csv" {
		if err := table.WriteCSV(f); err != nil {
			return fmt.Errorf("failed to save training table: %w", err)
		}
		return nil
	}
	if err := msgpack.NewEncoder(f).Encode(table); err != nil {
		return fmt.Errorf("failed to save training table: %w", err)
	}
	return nil
}

// LoadTable loads a msgpack training table previously stored by SaveTable
func LoadTable(path string) (*TrainingTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load training table: %w", err)
	}
	defer f.Close()
	var ans TrainingTable
	if err := msgpack.NewDecoder(f).Decode(&ans); err != nil {
		return nil, fmt.Errorf("failed to load training table %s: %w", path, err)
	}
	if len(ans.Rows) == 0 {
		return nil, fmt.Errorf("failed to load training table %s: %w", path, ErrNoTrainingData)
	}
	return &ans, nil
}
