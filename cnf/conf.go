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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/czcorpus/cnc-gokit/logging"
	"github.com/rs/zerolog/log"
)

const (
	dfltServerReadTimeoutSecs  = 10
	dfltServerWriteTimeoutSecs = 30
	dfltListenAddress          = "127.0.0.1"
	dfltListenPort             = 8000
	dfltModelsDir              = "models"
	dfltVehiclesPath           = "data/vehicles.csv"
	dfltTrafficVolumesPath     = "data/traffic_volumes.csv"
	dfltBottlenecksPath        = "data/bottlenecks.csv"

	DfltCityWeight      = 0.55
	DfltHighwayWeight   = 0.45
	DfltTestRatio       = 0.2
	DfltSeed            = 42
	DfltEpochs          = 50
	DfltBatchSize       = 32
	DfltValidationSplit = 0.2
	DfltLearningRate    = 0.001
	DfltDropoutRate     = 0.3

	ModelTypeFFN = "ffn"
	ModelTypeNN  = "nn"

	MissingMatchDrop = "drop"
	MissingMatchFail = "fail"
)

var DfltHiddenLayers = []int{64, 32}

// DatasetsConf specifies locations of the three source tables
type DatasetsConf struct {
	VehiclesPath       string `json:"vehiclesPath"`
	TrafficVolumesPath string `json:"trafficVolumesPath"`
	BottlenecksPath    string `json:"bottlenecksPath"`
}

// FeaturesConf controls the feature engineering step.
type FeaturesConf struct {

	// CityWeight and HighwayWeight define the weighted sum
	// producing `combined_fuel_efficiency`
	CityWeight    float64 `json:"cityWeight"`
	HighwayWeight float64 `json:"highwayWeight"`

	// MissingMatchPolicy says what happens with merged rows
	// for which one of the left joins found no match.
	// Supported values are "drop" and "fail".
	MissingMatchPolicy string `json:"missingMatchPolicy"`
}

type TrainingConf struct {
	ModelType       string  `json:"modelType"`
	TestRatio       float64 `json:"testRatio"`
	Seed            uint64  `json:"seed"`
	Epochs          int     `json:"epochs"`
	BatchSize       int     `json:"batchSize"`
	ValidationSplit float64 `json:"validationSplit"`
	LearningRate    float64 `json:"learningRate"`
	DropoutRate     float64 `json:"dropoutRate"`
	HiddenLayers    []int   `json:"hiddenLayers"`
}

func (tc TrainingConf) String() string {
	return fmt.Sprintf(
		"type: %s, layout: %v, epochs: %d, batch: %d, lr: %g, dropout: %.2f",
		tc.ModelType, tc.HiddenLayers, tc.Epochs, tc.BatchSize, tc.LearningRate, tc.DropoutRate,
	)
}

// UnmarshalJSON starts from the default hyperparameters so values
// missing in the JSON get defaults while explicit zeros (seed 0,
// dropout disabled) are kept.
func (tc *TrainingConf) UnmarshalJSON(data []byte) error {
	type plainConf TrainingConf
	tmp := plainConf(DefaultTrainingConf())
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	*tc = TrainingConf(tmp)
	return nil
}

// DefaultTrainingConf returns the fixed hyperparameters
// both models are trained with.
func DefaultTrainingConf() TrainingConf {
	return TrainingConf{
		ModelType:       ModelTypeFFN,
		TestRatio:       DfltTestRatio,
		Seed:            DfltSeed,
		Epochs:          DfltEpochs,
		BatchSize:       DfltBatchSize,
		ValidationSplit: DfltValidationSplit,
		LearningRate:    DfltLearningRate,
		DropoutRate:     DfltDropoutRate,
		HiddenLayers:    append([]int{}, DfltHiddenLayers...),
	}
}

type Conf struct {
	srcPath                string
	Logging                logging.LoggingConf `json:"logging"`
	ListenAddress          string              `json:"listenAddress"`
	ListenPort             int                 `json:"listenPort"`
	ServerReadTimeoutSecs  int                 `json:"serverReadTimeoutSecs"`
	ServerWriteTimeoutSecs int                 `json:"serverWriteTimeoutSecs"`
	CorsAllowedOrigins     []string            `json:"corsAllowedOrigins"`
	Datasets               DatasetsConf        `json:"datasets"`
	Features               FeaturesConf        `json:"features"`
	Training               TrainingConf        `json:"training"`

	// ModelsDir is a directory where the two trained models
	// are stored (and loaded from by the API server)
	ModelsDir string `json:"modelsDir"`

	// StatsDBPath is an optional path to a SQLite database
	// where training runs are recorded
	StatsDBPath string `json:"statsDbPath"`

	// PredictionCacheSize - zero disables the cache
	PredictionCacheSize int `json:"predictionCacheSize"`
}

func LoadConfig(path string) *Conf {
	if path == "" {
		log.Fatal().Msg("Cannot load config - path not specified")
	}
	rawData, err := os.ReadFile(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot load config")
	}
	var conf Conf
	conf.srcPath = path
	err = json.Unmarshal(rawData, &conf)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot load config")
	}
	return &conf
}

func (conf *Conf) resolvePath(p string) string {
	if conf.srcPath == "" || p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(conf.srcPath), p)
}

func ValidateAndDefaults(conf *Conf) error {
	if conf.ListenAddress == "" {
		conf.ListenAddress = dfltListenAddress
	}
	if conf.ListenPort == 0 {
		conf.ListenPort = dfltListenPort
		log.Warn().Msgf("listenPort not specified, using default: %d", dfltListenPort)
	}
	if conf.ServerReadTimeoutSecs == 0 {
		conf.ServerReadTimeoutSecs = dfltServerReadTimeoutSecs
	}
	if conf.ServerWriteTimeoutSecs == 0 {
		conf.ServerWriteTimeoutSecs = dfltServerWriteTimeoutSecs
		log.Warn().Msgf(
			"serverWriteTimeoutSecs not specified, using default: %d",
			dfltServerWriteTimeoutSecs,
		)
	}

	if conf.Datasets.VehiclesPath == "" {
		conf.Datasets.VehiclesPath = dfltVehiclesPath
	}
	if conf.Datasets.TrafficVolumesPath == "" {
		conf.Datasets.TrafficVolumesPath = dfltTrafficVolumesPath
	}
	if conf.Datasets.BottlenecksPath == "" {
		conf.Datasets.BottlenecksPath = dfltBottlenecksPath
	}
	conf.Datasets.VehiclesPath = conf.resolvePath(conf.Datasets.VehiclesPath)
	conf.Datasets.TrafficVolumesPath = conf.resolvePath(conf.Datasets.TrafficVolumesPath)
	conf.Datasets.BottlenecksPath = conf.resolvePath(conf.Datasets.BottlenecksPath)

	if conf.ModelsDir == "" {
		conf.ModelsDir = dfltModelsDir
		log.Warn().Str("dir", dfltModelsDir).Msg("modelsDir not specified, using default")
	}
	conf.ModelsDir = conf.resolvePath(conf.ModelsDir)
	conf.StatsDBPath = conf.resolvePath(conf.StatsDBPath)

	if conf.PredictionCacheSize < 0 {
		return fmt.Errorf("invalid predictionCacheSize %d", conf.PredictionCacheSize)
	}

	if err := validateFeatures(&conf.Features); err != nil {
		return err
	}
	return validateTraining(&conf.Training)
}

func validateFeatures(fc *FeaturesConf) error {
	if fc.CityWeight == 0 && fc.HighwayWeight == 0 {
		fc.CityWeight = DfltCityWeight
		fc.HighwayWeight = DfltHighwayWeight
	}
	if fc.CityWeight < 0 || fc.HighwayWeight < 0 {
		return fmt.Errorf("fuel efficiency weights must not be negative")
	}
	switch fc.MissingMatchPolicy {
	case "":
		fc.MissingMatchPolicy = MissingMatchDrop
	case MissingMatchDrop, MissingMatchFail:
	default:
		return fmt.Errorf("unknown missingMatchPolicy '%s'", fc.MissingMatchPolicy)
	}
	return nil
}

func validateTraining(tc *TrainingConf) error {
	dflt := DefaultTrainingConf()
	if reflect.ValueOf(*tc).IsZero() {
		log.Warn().Msg("training section not specified, using default hyperparameters")
		*tc = dflt
	}
	switch tc.ModelType {
	case "":
		tc.ModelType = dflt.ModelType
	case ModelTypeFFN, ModelTypeNN:
	default:
		return fmt.Errorf("unknown training.modelType '%s'", tc.ModelType)
	}
	if tc.TestRatio == 0 {
		tc.TestRatio = dflt.TestRatio
	}
	if tc.TestRatio <= 0 || tc.TestRatio >= 1 {
		return fmt.Errorf("training.testRatio must be in (0, 1)")
	}
	if tc.Epochs == 0 {
		tc.Epochs = dflt.Epochs
	}
	if tc.BatchSize == 0 {
		tc.BatchSize = dflt.BatchSize
	}
	if tc.Epochs < 0 || tc.BatchSize < 0 {
		return fmt.Errorf("training.epochs and training.batchSize must be positive")
	}
	if tc.ValidationSplit == 0 {
		tc.ValidationSplit = dflt.ValidationSplit
	}
	if tc.ValidationSplit < 0 || tc.ValidationSplit >= 1 {
		return fmt.Errorf("training.validationSplit must be in [0, 1)")
	}
	if tc.LearningRate == 0 {
		tc.LearningRate = dflt.LearningRate
	}
	if tc.DropoutRate < 0 || tc.DropoutRate >= 1 {
		return fmt.Errorf("training.dropoutRate must be in [0, 1)")
	}
	if len(tc.HiddenLayers) == 0 {
		tc.HiddenLayers = dflt.HiddenLayers
	}
	for _, v := range tc.HiddenLayers {
		if v <= 0 {
			return fmt.Errorf("invalid hidden layer size %d", v)
		}
	}
	return nil
}
