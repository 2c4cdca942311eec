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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/eeshabandaru/fuel-efficient-route-tracker/dataset"
	"github.com/eeshabandaru/fuel-efficient-route-tracker/feats"
)

type Target string

const (
	TargetFuelConsumption Target = feats.ColFuelConsumption
	TargetCO2Emissions    Target = "co2_emissions"
)

// Targets lists all the trained models in a fixed order
var Targets = []Target{TargetFuelConsumption, TargetCO2Emissions}

func (t Target) Validate() bool {
	return t == TargetFuelConsumption || t == TargetCO2Emissions
}

// Value extracts the target value from a training row
func (t Target) Value(row feats.TrainingRow) float64 {
	if t == TargetCO2Emissions {
		return row.CO2Emissions
	}
	return row.FuelConsumption
}

func (t Target) ModelFileName() string {
	return string(t) + "_model.json"
}

// ModelPaths returns the fixed model file paths within a directory
func ModelPaths(dir string) map[Target]string {
	ans := make(map[Target]string)
	for _, t := range Targets {
		ans[t] = filepath.Join(dir, t.ModelFileName())
	}
	return ans
}

// ----------------------------

// PersistError is returned when a model cannot be written
type PersistError struct {
	Path string
	Err  error
}

func (err *PersistError) Error() string {
	return fmt.Sprintf("failed to save model to %s: %s", err.Path, err.Err)
}

func (err *PersistError) Unwrap() error {
	return err.Err
}

// ----------------------------

type jsonizedModel struct {
	Target    Target                  `json:"target"`
	ModelType string                  `json:"modelType"`
	Info      string                  `json:"info"`
	Scaler    *dataset.StandardScaler `json:"scaler"`
	TestMSE   float64                 `json:"testMse"`
	Created   time.Time               `json:"created"`
	Network   json.RawMessage         `json:"network"`
}

// Model is a trained regressor for a single target together
// with the feature scaler fitted on its training split.
type Model struct {
	Target    Target
	ModelType string
	Scaler    *dataset.StandardScaler
	Regressor Regressor
	TestMSE   float64
	Created   time.Time
}

// Predict scales raw features and evaluates the regressor
func (m *Model) Predict(fv feats.FeatureVector) float64 {
	return m.Regressor.Predict(m.Scaler.Transform(fv))
}

func (m *Model) GetInfo() string {
	return fmt.Sprintf("%s: %s, test MSE: %.4f", m.Target, m.Regressor.GetInfo(), m.TestMSE)
}

func (m *Model) marshal() ([]byte, error) {
	dump, err := m.Regressor.Dump()
	if err != nil {
		return nil, err
	}
	return json.Marshal(jsonizedModel{
		Target:    m.Target,
		ModelType: m.ModelType,
		Info:      m.Regressor.GetInfo(),
		Scaler:    m.Scaler,
		TestMSE:   m.TestMSE,
		Created:   m.Created,
		Network:   dump,
	})
}

// writeTemp writes data to a new temporary file next to filePath
// and returns the temporary file's path.
func writeTemp(filePath string, data []byte) (string, error) {
	file, err := os.CreateTemp(filepath.Dir(filePath), filepath.Base(filePath)+".*.tmp")
	if err != nil {
		return "", err
	}
	tmpPath := file.Name()
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return "", err
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	return tmpPath, nil
}

// SaveToFile writes the model to a temporary file which
// then replaces filePath.
func (m *Model) SaveToFile(filePath string) error {
	data, err := m.marshal()
	if err != nil {
		return &PersistError{Path: filePath, Err: err}
	}
	tmpPath, err := writeTemp(filePath, data)
	if err != nil {
		return &PersistError{Path: filePath, Err: err}
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		os.Remove(tmpPath)
		return &PersistError{Path: filePath, Err: err}
	}
	return nil
}

func LoadModel(filePath string) (*Model, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open model file: %w", err)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to load model from file %s: %w", filePath, err)
	}
	var tmp jsonizedModel
	if err := json.Unmarshal(data, &tmp); err != nil {
		return nil, fmt.Errorf("failed to load model from file %s: %w", filePath, err)
	}
	if !tmp.Target.Validate() {
		return nil, fmt.Errorf("failed to load model from file %s: unknown target '%s'", filePath, tmp.Target)
	}
	if tmp.Scaler == nil || !tmp.Scaler.Fitted {
		return nil, fmt.Errorf(
			"failed to load model from file %s: %w", filePath, dataset.ErrScalerNotFitted)
	}
	regressor, err := regressorFromDump(tmp.ModelType, tmp.Network)
	if err != nil {
		return nil, fmt.Errorf("failed to load model from file %s: %w", filePath, err)
	}
	return &Model{
		Target:    tmp.Target,
		ModelType: tmp.ModelType,
		Scaler:    tmp.Scaler,
		Regressor: regressor,
		TestMSE:   tmp.TestMSE,
		Created:   tmp.Created,
	}, nil
}

// SaveModels writes each model to its fixed path within dir.
// Existing files are overwritten only after all the models
// have been written successfully.
func SaveModels(dir string, models map[Target]*Model) (map[Target]string, error) {
	paths := ModelPaths(dir)
	tmpPaths := make(map[Target]string)
	cleanup := func() {
		for _, p := range tmpPaths {
			os.Remove(p)
		}
	}
	for _, t := range Targets {
		m, ok := models[t]
		if !ok {
			cleanup()
			return nil, &PersistError{Path: paths[t], Err: fmt.Errorf("model %s not available", t)}
		}
		data, err := m.marshal()
		if err != nil {
			cleanup()
			return nil, &PersistError{Path: paths[t], Err: err}
		}
		tmpPaths[t], err = writeTemp(paths[t], data)
		if err != nil {
			cleanup()
			return nil, &PersistError{Path: paths[t], Err: err}
		}
	}
	for _, t := range Targets {
		if err := os.Rename(tmpPaths[t], paths[t]); err != nil {
			cleanup()
			return nil, &PersistError{Path: paths[t], Err: err}
		}
		delete(tmpPaths, t)
	}
	return paths, nil
}

// LoadModels loads both models from their fixed paths within dir
func LoadModels(dir string) (map[Target]*Model, error) {
	ans := make(map[Target]*Model)
	for t, path := range ModelPaths(dir) {
		m, err := LoadModel(path)
		if err != nil {
			return nil, err
		}
		if m.Target != t {
			return nil, fmt.Errorf("model file %s contains model for %s", path, m.Target)
		}
		ans[t] = m
	}
	return ans, nil
}
