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

package dataimport

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/czcorpus/cnc-gokit/fs"
	"github.com/eeshabandaru/fuel-efficient-route-tracker/cnf"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/rs/zerolog/log"
)

// source table columns
const (
	ColLocation        = "location"
	ColDistance        = "distance"
	ColFuelType        = "Fuel_Type"
	ColTrafficSeverity = "traffic_severity"

	ColCityFuelEfficiency    = "city_fuel_efficiency"
	ColHighwayFuelEfficiency = "highway_fuel_efficiency"
	ColCO2Emissions          = "co2_emissions"

	RawColCityFuelConsumption    = "Fuel_Consumption_City"
	RawColHighwayFuelConsumption = "Fuel_Consumption_Hwy"
	RawColCO2Emissions           = "CO2_Emissions"
)

var (
	ErrDatasetNotFound = errors.New("dataset not found")
	ErrDatasetParse    = errors.New("failed to parse dataset")

	// VehicleColumnAliases maps canonical vehicle column names
	// to the names used by the published vehicle dataset.
	VehicleColumnAliases = map[string]string{
		ColCityFuelEfficiency:    RawColCityFuelConsumption,
		ColHighwayFuelEfficiency: RawColHighwayFuelConsumption,
		ColCO2Emissions:          RawColCO2Emissions,
	}

	nanValues = []string{"", "NA", "NaN", "nan", "<nil>"}

	columnTypes = map[string]series.Type{
		ColLocation:                  series.String,
		ColFuelType:                  series.String,
		ColDistance:                  series.Float,
		ColTrafficSeverity:           series.Float,
		ColCityFuelEfficiency:        series.Float,
		ColHighwayFuelEfficiency:     series.Float,
		ColCO2Emissions:              series.Float,
		RawColCityFuelConsumption:    series.Float,
		RawColHighwayFuelConsumption: series.Float,
		RawColCO2Emissions:           series.Float,
	}
)

// Datasets contains the three source tables as loaded
// from their files (i.e. without any cleaning).
type Datasets struct {
	Vehicles       dataframe.DataFrame
	TrafficVolumes dataframe.DataFrame
	Bottlenecks    dataframe.DataFrame
}

// columnSpec is a list of alternative names of a required column
type columnSpec []string

func (cs columnSpec) String() string {
	return strings.Join(cs, " | ")
}

func hasAnyColumn(names []string, spec columnSpec) bool {
	for _, alt := range spec {
		for _, n := range names {
			if n == alt {
				return true
			}
		}
	}
	return false
}

// readTable reads a delimited file into a data frame. Join keys are always
// read as strings, known numeric columns as floats (an unparseable cell
// becomes a missing value).
func readTable(path string, required ...columnSpec) (dataframe.DataFrame, error) {
	isFile, err := fs.IsFile(path)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to stat dataset %s: %w", path, err)
	}
	if !isFile {
		return dataframe.DataFrame{}, fmt.Errorf("%w: %s", ErrDatasetNotFound, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to open dataset %s: %w", path, err)
	}
	defer f.Close()
	df := dataframe.ReadCSV(
		f,
		dataframe.NaNValues(nanValues),
		dataframe.WithTypes(columnTypes),
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%w %s: %w", ErrDatasetParse, path, df.Err)
	}
	names := df.Names()
	for _, spec := range required {
		if !hasAnyColumn(names, spec) {
			return dataframe.DataFrame{}, fmt.Errorf(
				"%w %s: missing column %s", ErrDatasetParse, path, spec)
		}
	}
	return df, nil
}

func vehicleColumn(canonical string) columnSpec {
	return columnSpec{canonical, VehicleColumnAliases[canonical]}
}

// LoadDatasets reads vehicle, traffic volume and bottleneck tables.
// Only presence of columns needed by the feature engineering is checked.
func LoadDatasets(conf cnf.DatasetsConf) (*Datasets, error) {
	var ans Datasets
	var err error
	ans.Vehicles, err = readTable(
		conf.VehiclesPath,
		columnSpec{ColFuelType},
		vehicleColumn(ColCityFuelEfficiency),
		vehicleColumn(ColHighwayFuelEfficiency),
		vehicleColumn(ColCO2Emissions),
	)
	if err != nil {
		return nil, err
	}
	ans.TrafficVolumes, err = readTable(
		conf.TrafficVolumesPath,
		columnSpec{ColLocation},
		columnSpec{ColDistance},
		columnSpec{ColFuelType},
	)
	if err != nil {
		return nil, err
	}
	ans.Bottlenecks, err = readTable(
		conf.BottlenecksPath,
		columnSpec{ColLocation},
		columnSpec{ColTrafficSeverity},
	)
	if err != nil {
		return nil, err
	}
	log.Info().
		Int("vehicles", ans.Vehicles.Nrow()).
		Int("trafficVolumes", ans.TrafficVolumes.Nrow()).
		Int("bottlenecks", ans.Bottlenecks.Nrow()).
		Msg("loaded source datasets")
	return &ans, nil
}
