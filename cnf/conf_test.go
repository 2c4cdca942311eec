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

package cnf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAndDefaultsEmptyConf(t *testing.T) {
	conf := &Conf{}
	require.NoError(t, ValidateAndDefaults(conf))
	assert.Equal(t, DfltCityWeight, conf.Features.CityWeight)
	assert.Equal(t, DfltHighwayWeight, conf.Features.HighwayWeight)
	assert.Equal(t, MissingMatchDrop, conf.Features.MissingMatchPolicy)
	assert.Equal(t, DefaultTrainingConf(), conf.Training)
	assert.Equal(t, dfltModelsDir, conf.ModelsDir)
	assert.Equal(t, dfltVehiclesPath, conf.Datasets.VehiclesPath)
}

func TestValidateAndDefaultsKeepsValues(t *testing.T) {
	conf := &Conf{
		Training: TrainingConf{
			ModelType: ModelTypeNN,
			Epochs:    3,
			BatchSize: 8,
			Seed:      7,
		},
	}
	require.NoError(t, ValidateAndDefaults(conf))
	assert.Equal(t, ModelTypeNN, conf.Training.ModelType)
	assert.Equal(t, 3, conf.Training.Epochs)
	assert.Equal(t, 8, conf.Training.BatchSize)
	assert.Equal(t, uint64(7), conf.Training.Seed)
	assert.Equal(t, DfltLearningRate, conf.Training.LearningRate)
}

func TestValidateAndDefaultsInvalid(t *testing.T) {
	cases := []struct {
		name string
		conf Conf
	}{
		{"modelType", Conf{Training: TrainingConf{ModelType: "xg"}}},
		{"testRatio", Conf{Training: TrainingConf{TestRatio: 1.5}}},
		{"dropout", Conf{Training: TrainingConf{DropoutRate: 1}}},
		{"layers", Conf{Training: TrainingConf{HiddenLayers: []int{64, 0}}}},
		{"policy", Conf{Features: FeaturesConf{MissingMatchPolicy: "ignore"}}},
		{"weights", Conf{Features: FeaturesConf{CityWeight: -1, HighwayWeight: 1}}},
		{"cache", Conf{PredictionCacheSize: -10}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			conf := c.conf
			assert.Error(t, ValidateAndDefaults(&conf))
		})
	}
}

func TestLoadConfigResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	confPath := filepath.Join(dir, "conf.json")
	data := `{"modelsDir": "out", "datasets": {"vehiclesPath": "/abs/vehicles.csv"}}`
	require.NoError(t, os.WriteFile(confPath, []byte(data), 0644))

	conf := LoadConfig(confPath)
	require.NoError(t, ValidateAndDefaults(conf))
	assert.Equal(t, filepath.Join(dir, "out"), conf.ModelsDir)
	assert.Equal(t, "/abs/vehicles.csv", conf.Datasets.VehiclesPath)
	assert.Equal(t, filepath.Join(dir, dfltBottlenecksPath), conf.Datasets.BottlenecksPath)
}

func TestLoadConfigKeepsExplicitZeros(t *testing.T) {
	dir := t.TempDir()
	confPath := filepath.Join(dir, "conf.json")
	data := `{"training": {"seed": 0, "dropoutRate": 0, "epochs": 5}}`
	require.NoError(t, os.WriteFile(confPath, []byte(data), 0644))

	conf := LoadConfig(confPath)
	require.NoError(t, ValidateAndDefaults(conf))
	assert.Equal(t, uint64(0), conf.Training.Seed)
	assert.Equal(t, 0.0, conf.Training.DropoutRate)
	assert.Equal(t, 5, conf.Training.Epochs)
	assert.Equal(t, DfltBatchSize, conf.Training.BatchSize)
	assert.Equal(t, DfltHiddenLayers, conf.Training.HiddenLayers)
}

func TestLoadConfigWithoutTrainingUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	confPath := filepath.Join(dir, "conf.json")
	require.NoError(t, os.WriteFile(confPath, []byte(`{"modelsDir": "out"}`), 0644))

	conf := LoadConfig(confPath)
	require.NoError(t, ValidateAndDefaults(conf))
	assert.Equal(t, DefaultTrainingConf(), conf.Training)
}
