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
	"errors"
	"fmt"
	"math"

	"github.com/eeshabandaru/fuel-efficient-route-tracker/cnf"
	"github.com/eeshabandaru/fuel-efficient-route-tracker/dataimport"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// derived columns
const (
	ColCombinedFuelEfficiency    = "combined_fuel_efficiency"
	ColNormalizedTrafficSeverity = "normalized_traffic_severity"
	ColFuelConsumption           = "fuel_consumption"

	NumFeatures = 3
)

var (
	ErrInvalidSeverity = errors.New("invalid traffic severity")
	ErrJoinKeyMismatch = errors.New("join key has no match")
	ErrNoTrainingData  = errors.New("no training data")

	// FeatureNames is the fixed order of model inputs
	FeatureNames = [NumFeatures]string{
		dataimport.ColDistance,
		ColNormalizedTrafficSeverity,
		ColCombinedFuelEfficiency,
	}
)

// FeatureVector is the input of both trained models. Items follow
// the order of FeatureNames.
type FeatureVector [NumFeatures]float64

func (fv FeatureVector) IsFinite() bool {
	for _, v := range fv {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// TrainingRow is a single merged record with its two targets
type TrainingRow struct {
	Features        FeatureVector `msgpack:"features"`
	FuelConsumption float64       `msgpack:"fuelConsumption"`
	CO2Emissions    float64       `msgpack:"co2Emissions"`
}

// MergeReport describes what happened to rows during
// feature engineering.
type MergeReport struct {
	Vehicles       int `msgpack:"vehicles" json:"vehicles"`
	TrafficVolumes int `msgpack:"trafficVolumes" json:"trafficVolumes"`
	Bottlenecks    int `msgpack:"bottlenecks" json:"bottlenecks"`

	// DroppedMissing contains number of rows removed from source tables
	// because of a missing value
	DroppedMissing int `msgpack:"droppedMissing" json:"droppedMissing"`

	Merged int `msgpack:"merged" json:"merged"`

	// Unmatched is the number of merged rows for which one
	// of the joins found nothing
	Unmatched int `msgpack:"unmatched" json:"unmatched"`

	// InvalidEfficiency is the number of merged rows for which
	// fuel consumption cannot be computed
	InvalidEfficiency int `msgpack:"invalidEfficiency" json:"invalidEfficiency"`

	Output int `msgpack:"output" json:"output"`
}

// ---------------------------------------

// DropMissing removes all the rows containing at least one missing value.
func DropMissing(df dataframe.DataFrame) dataframe.DataFrame {
	if df.Err != nil {
		return df
	}
	keep := make([]bool, df.Nrow())
	for i := range keep {
		keep[i] = true
	}
	for _, name := range df.Names() {
		for i, isNaN := range df.Col(name).IsNaN() {
			if isNaN {
				keep[i] = false
			}
		}
	}
	indexes := make([]int, 0, len(keep))
	for i, k := range keep {
		if k {
			indexes = append(indexes, i)
		}
	}
	if len(indexes) == df.Nrow() {
		return df
	}
	return df.Subset(indexes)
}

// RenameVehicleColumns replaces raw vehicle dataset column names
// with the canonical ones. Columns already using canonical names
// are left untouched.
func RenameVehicleColumns(df dataframe.DataFrame) dataframe.DataFrame {
	names := make(map[string]bool)
	for _, n := range df.Names() {
		names[n] = true
	}
	for canonical, raw := range dataimport.VehicleColumnAliases {
		if names[raw] && !names[canonical] {
			df = df.Rename(canonical, raw)
		}
	}
	return df
}

// CombinedFuelEfficiency is a weighted sum of city and highway efficiency
func CombinedFuelEfficiency(city, highway float64, conf cnf.FeaturesConf) float64 {
	return conf.CityWeight*city + conf.HighwayWeight*highway
}

// AddCombinedFuelEfficiency adds the `combined_fuel_efficiency`
// column to a (canonically named) vehicle table.
func AddCombinedFuelEfficiency(vehicles dataframe.DataFrame, conf cnf.FeaturesConf) dataframe.DataFrame {
	city := vehicles.Col(dataimport.ColCityFuelEfficiency).Float()
	highway := vehicles.Col(dataimport.ColHighwayFuelEfficiency).Float()
	combined := make([]float64, len(city))
	for i := range city {
		combined[i] = CombinedFuelEfficiency(city[i], highway[i], conf)
	}
	return vehicles.Mutate(series.New(combined, series.Float, ColCombinedFuelEfficiency))
}

// NormalizeSeverity divides all the values by their maximum.
// The maximum must be positive and no value may be negative.
func NormalizeSeverity(values []float64) ([]float64, error) {
	if len(values) == 0 {
		return []float64{}, nil
	}
	maxVal := math.Inf(-1)
	for _, v := range values {
		if v < 0 || math.IsNaN(v) {
			return nil, fmt.Errorf("%w: value %v", ErrInvalidSeverity, v)
		}
		maxVal = max(maxVal, v)
	}
	if maxVal <= 0 || math.IsInf(maxVal, 0) {
		return nil, fmt.Errorf("%w: max severity is %v", ErrInvalidSeverity, maxVal)
	}
	ans := make([]float64, len(values))
	for i, v := range values {
		ans[i] = v / maxVal
	}
	return ans, nil
}

// AddNormalizedSeverity adds the `normalized_traffic_severity`
// column to a bottleneck table.
func AddNormalizedSeverity(bottlenecks dataframe.DataFrame) (dataframe.DataFrame, error) {
	norm, err := NormalizeSeverity(bottlenecks.Col(dataimport.ColTrafficSeverity).Float())
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	return bottlenecks.Mutate(series.New(norm, series.Float, ColNormalizedTrafficSeverity)), nil
}

// FuelConsumption computes consumption for a distance. The second returned
// value is false if the efficiency is unusable as a divisor or the result
// is not finite.
func FuelConsumption(distance, efficiency float64) (float64, bool) {
	if math.IsNaN(efficiency) || efficiency <= 0 {
		return 0, false
	}
	ans := distance / efficiency
	if math.IsNaN(ans) || math.IsInf(ans, 0) {
		return 0, false
	}
	return ans, true
}
