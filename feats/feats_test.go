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
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eeshabandaru/fuel-efficient-route-tracker/cnf"
	"github.com/eeshabandaru/fuel-efficient-route-tracker/dataimport"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultFeaturesConf() cnf.FeaturesConf {
	return cnf.FeaturesConf{
		CityWeight:         cnf.DfltCityWeight,
		HighwayWeight:      cnf.DfltHighwayWeight,
		MissingMatchPolicy: cnf.MissingMatchDrop,
	}
}

func loadFixtures(t *testing.T) *dataimport.Datasets {
	ds, err := dataimport.LoadDatasets(cnf.DatasetsConf{
		VehiclesPath:       filepath.Join("..", "testdata", "vehicles.csv"),
		TrafficVolumesPath: filepath.Join("..", "testdata", "traffic_volumes.csv"),
		BottlenecksPath:    filepath.Join("..", "testdata", "bottlenecks.csv"),
	})
	require.NoError(t, err)
	return ds
}

func TestCombinedFuelEfficiency(t *testing.T) {
	assert.InDelta(t, 9.1, CombinedFuelEfficiency(10, 8, defaultFeaturesConf()), 1e-9)
}

func TestAddCombinedFuelEfficiency(t *testing.T) {
	df := dataframe.New(
		series.New([]float64{10, 12}, series.Float, dataimport.ColCityFuelEfficiency),
		series.New([]float64{8, 9}, series.Float, dataimport.ColHighwayFuelEfficiency),
	)
	df = AddCombinedFuelEfficiency(df, defaultFeaturesConf())
	require.NoError(t, df.Err)
	combined := df.Col(ColCombinedFuelEfficiency).Float()
	assert.InDelta(t, 9.1, combined[0], 1e-9)
	assert.InDelta(t, 10.65, combined[1], 1e-9)
}

func TestNormalizeSeverity(t *testing.T) {
	ans, err := NormalizeSeverity([]float64{2, 4, 8})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.25, 0.5, 1.0}, ans, 1e-12)
	assert.Equal(t, 1.0, ans[2])
}

func TestNormalizeSeverityBounds(t *testing.T) {
	ans, err := NormalizeSeverity([]float64{0, 3, 17, 0.5, 17})
	require.NoError(t, err)
	for _, v := range ans {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestNormalizeSeverityInvalid(t *testing.T) {
	_, err := NormalizeSeverity([]float64{0, 0})
	assert.ErrorIs(t, err, ErrInvalidSeverity)
	_, err = NormalizeSeverity([]float64{-1, 4})
	assert.ErrorIs(t, err, ErrInvalidSeverity)
}

func TestDropMissing(t *testing.T) {
	df := dataframe.New(
		series.New([]string{"L1", "L2", "NaN", "L4"}, series.String, "location"),
		series.New([]float64{1, math.NaN(), 3, 4}, series.Float, "distance"),
	)
	cleaned := DropMissing(df)
	require.NoError(t, cleaned.Err)
	assert.Equal(t, 2, cleaned.Nrow())
	assert.Equal(t, []string{"L1", "L4"}, cleaned.Col("location").Records())
	for _, name := range cleaned.Names() {
		assert.False(t, cleaned.Col(name).HasNaN())
	}
	again := DropMissing(cleaned)
	assert.Equal(t, cleaned.Records(), again.Records())
}

func TestRenameVehicleColumns(t *testing.T) {
	df := dataframe.New(
		series.New([]float64{10}, series.Float, dataimport.RawColCityFuelConsumption),
		series.New([]float64{8}, series.Float, dataimport.ColHighwayFuelEfficiency),
		series.New([]float64{196}, series.Float, dataimport.RawColCO2Emissions),
	)
	df = RenameVehicleColumns(df)
	require.NoError(t, df.Err)
	assert.ElementsMatch(
		t,
		[]string{
			dataimport.ColCityFuelEfficiency,
			dataimport.ColHighwayFuelEfficiency,
			dataimport.ColCO2Emissions,
		},
		df.Names(),
	)
}

func TestFuelConsumption(t *testing.T) {
	v, ok := FuelConsumption(100, 10)
	assert.True(t, ok)
	assert.Equal(t, 10.0, v)

	_, ok = FuelConsumption(100, 0)
	assert.False(t, ok)
	_, ok = FuelConsumption(100, math.NaN())
	assert.False(t, ok)
	_, ok = FuelConsumption(100, -2)
	assert.False(t, ok)
}

func TestProcessFixtures(t *testing.T) {
	ds := loadFixtures(t)
	table, err := NewEngineer(defaultFeaturesConf()).Process(ds)
	require.NoError(t, err)
	require.Equal(t, 3, table.Len())

	assert.Equal(t, 3, table.Report.Vehicles)
	assert.Equal(t, 5, table.Report.TrafficVolumes)
	assert.Equal(t, 4, table.Report.Bottlenecks)
	assert.Equal(t, 3, table.Report.DroppedMissing)
	assert.Equal(t, 5, table.Report.Merged)
	assert.Equal(t, 1, table.Report.Unmatched)
	assert.Equal(t, 1, table.Report.InvalidEfficiency)
	assert.Equal(t, 3, table.Report.Output)

	l1 := table.Rows[0]
	assert.InDeltaSlice(t, []float64{100, 0.25, 9.1}, l1.Features[:], 1e-9)
	assert.InDelta(t, 100/9.1, l1.FuelConsumption, 1e-9)
	assert.Equal(t, 196.0, l1.CO2Emissions)

	l2 := table.Rows[1]
	assert.InDeltaSlice(t, []float64{50, 0.5, 10.65}, l2.Features[:], 1e-9)
	assert.Equal(t, 221.0, l2.CO2Emissions)

	l3 := table.Rows[2]
	assert.Equal(t, 1.0, l3.Features[1])

	for _, row := range table.Rows {
		assert.True(t, row.Features.IsFinite())
		assert.False(t, math.IsNaN(row.FuelConsumption))
	}
}

func TestProcessFailPolicy(t *testing.T) {
	ds := loadFixtures(t)
	conf := defaultFeaturesConf()
	conf.MissingMatchPolicy = cnf.MissingMatchFail
	_, err := NewEngineer(conf).Process(ds)
	assert.ErrorIs(t, err, ErrJoinKeyMismatch)
	assert.Contains(t, err.Error(), "L5")
}

func TestProcessFanOut(t *testing.T) {
	ds := loadFixtures(t)
	ds.Vehicles = ds.Vehicles.RBind(ds.Vehicles.Subset([]int{0}))
	table, err := NewEngineer(defaultFeaturesConf()).Process(ds)
	require.NoError(t, err)
	// both Z locations (L1, L3) match two vehicles now
	assert.Equal(t, 5, table.Len())
}

func TestProcessNoData(t *testing.T) {
	ds := loadFixtures(t)
	ds.TrafficVolumes = ds.TrafficVolumes.Subset([]int{3}) // L4 with zero efficiency
	_, err := NewEngineer(defaultFeaturesConf()).Process(ds)
	assert.ErrorIs(t, err, ErrNoTrainingData)
}

func TestTableWriteCSV(t *testing.T) {
	table := &TrainingTable{
		Rows: []TrainingRow{
			{Features: FeatureVector{100, 0.25, 8}, FuelConsumption: 12.5, CO2Emissions: 196},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, table.WriteCSV(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(
		t,
		"distance,normalized_traffic_severity,combined_fuel_efficiency,fuel_consumption,co2_emissions",
		lines[0],
	)
}

func TestSaveLoadTable(t *testing.T) {
	ds := loadFixtures(t)
	table, err := NewEngineer(defaultFeaturesConf()).Process(ds)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "feats.msgpack")
	require.NoError(t, SaveTable(table, path))
	loaded, err := LoadTable(path)
	require.NoError(t, err)
	assert.Equal(t, table, loaded)
}
