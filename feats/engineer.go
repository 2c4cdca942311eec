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
	"math"

	"github.com/eeshabandaru/fuel-efficient-route-tracker/cnf"
	"github.com/eeshabandaru/fuel-efficient-route-tracker/dataimport"
	"github.com/go-gota/gota/dataframe"
	"github.com/rs/zerolog/log"
)

// Engineer turns the three source tables into a training table
type Engineer struct {
	conf cnf.FeaturesConf
}

func (eng *Engineer) cleanTables(ds *dataimport.Datasets, report *MergeReport) (
	vehicles, traffic, bottlenecks dataframe.DataFrame,
) {
	vehicles = DropMissing(ds.Vehicles)
	traffic = DropMissing(ds.TrafficVolumes)
	bottlenecks = DropMissing(ds.Bottlenecks)
	report.Vehicles = vehicles.Nrow()
	report.TrafficVolumes = traffic.Nrow()
	report.Bottlenecks = bottlenecks.Nrow()
	report.DroppedMissing = ds.Vehicles.Nrow() - vehicles.Nrow() +
		ds.TrafficVolumes.Nrow() - traffic.Nrow() +
		ds.Bottlenecks.Nrow() - bottlenecks.Nrow()
	return
}

// Merge performs the two left joins (traffic volumes with bottlenecks on
// location, then with vehicles on fuel type). Only columns needed for
// features and targets are kept.
func (eng *Engineer) Merge(ds *dataimport.Datasets, report *MergeReport) (dataframe.DataFrame, error) {
	vehicles, traffic, bottlenecks := eng.cleanTables(ds, report)
	vehicles = AddCombinedFuelEfficiency(RenameVehicleColumns(vehicles), eng.conf)
	bottlenecks, err := AddNormalizedSeverity(bottlenecks)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	merged := traffic.
		Select([]string{dataimport.ColLocation, dataimport.ColDistance, dataimport.ColFuelType}).
		LeftJoin(
			bottlenecks.Select([]string{dataimport.ColLocation, ColNormalizedTrafficSeverity}),
			dataimport.ColLocation,
		).
		LeftJoin(
			vehicles.Select(
				[]string{dataimport.ColFuelType, ColCombinedFuelEfficiency, dataimport.ColCO2Emissions}),
			dataimport.ColFuelType,
		)
	if merged.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to merge datasets: %w", merged.Err)
	}
	report.Merged = merged.Nrow()
	return merged, nil
}

// Process runs the whole feature engineering. Rows without a join match
// are either dropped or reported as an error based on the configured
// policy. Rows with unusable fuel efficiency are always dropped.
func (eng *Engineer) Process(ds *dataimport.Datasets) (*TrainingTable, error) {
	var ans TrainingTable
	merged, err := eng.Merge(ds, &ans.Report)
	if err != nil {
		return nil, err
	}
	locations := merged.Col(dataimport.ColLocation).Records()
	fuelTypes := merged.Col(dataimport.ColFuelType).Records()
	distance := merged.Col(dataimport.ColDistance).Float()
	severity := merged.Col(ColNormalizedTrafficSeverity).Float()
	efficiency := merged.Col(ColCombinedFuelEfficiency).Float()
	co2 := merged.Col(dataimport.ColCO2Emissions).Float()

	ans.Rows = make([]TrainingRow, 0, merged.Nrow())
	for i := 0; i < merged.Nrow(); i++ {
		// source tables are already cleaned so any missing
		// value here comes from a failed join
		if math.IsNaN(severity[i]) || math.IsNaN(efficiency[i]) || math.IsNaN(co2[i]) {
			if eng.conf.MissingMatchPolicy == cnf.MissingMatchFail {
				return nil, fmt.Errorf(
					"%w: location %s, fuel type %s", ErrJoinKeyMismatch, locations[i], fuelTypes[i])
			}
			ans.Report.Unmatched++
			continue
		}
		fuel, ok := FuelConsumption(distance[i], efficiency[i])
		if !ok {
			ans.Report.InvalidEfficiency++
			continue
		}
		ans.Rows = append(
			ans.Rows,
			TrainingRow{
				Features:        FeatureVector{distance[i], severity[i], efficiency[i]},
				FuelConsumption: fuel,
				CO2Emissions:    co2[i],
			},
		)
	}
	ans.Report.Output = len(ans.Rows)
	log.Info().
		Int("merged", ans.Report.Merged).
		Int("unmatched", ans.Report.Unmatched).
		Int("invalidEfficiency", ans.Report.InvalidEfficiency).
		Int("droppedMissing", ans.Report.DroppedMissing).
		Int("output", ans.Report.Output).
		Msg("feature engineering done")
	if len(ans.Rows) == 0 {
		return nil, ErrNoTrainingData
	}
	return &ans, nil
}

func NewEngineer(conf cnf.FeaturesConf) *Engineer {
	return &Engineer{conf: conf}
}
