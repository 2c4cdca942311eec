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
	"context"
	"encoding/json"
	"errors"

	"github.com/eeshabandaru/fuel-efficient-route-tracker/cnf"
	"github.com/eeshabandaru/fuel-efficient-route-tracker/dataset"
	"github.com/eeshabandaru/fuel-efficient-route-tracker/eval/ffn"
	"github.com/eeshabandaru/fuel-efficient-route-tracker/eval/nn"
	"github.com/eeshabandaru/fuel-efficient-route-tracker/feats"
)

var ErrNoSuchModel = errors.New("no such model type")

// Regressor is a generalization of a trainable regression network
// mapping a (scaled) feature vector to a single value.
type Regressor interface {

	// Train fits the model. The valid examples are used only
	// for monitoring (validation loss reported via onEpoch).
	Train(ctx context.Context, trn, valid []dataset.Example, onEpoch dataset.EpochCallback) error

	Predict(feats.FeatureVector) float64

	// Dump exports the trained network so it can be
	// stored as a part of a model file.
	Dump() (json.RawMessage, error)

	GetInfo() string
}

// NewRegressor creates an untrained regressor of the configured type
func NewRegressor(conf cnf.TrainingConf) (Regressor, error) {
	switch conf.ModelType {
	case cnf.ModelTypeFFN:
		return ffn.NewModel(conf), nil
	case cnf.ModelTypeNN:
		return nn.NewModel(conf), nil
	default:
		return nil, ErrNoSuchModel
	}
}

func regressorFromDump(modelType string, data json.RawMessage) (Regressor, error) {
	switch modelType {
	case cnf.ModelTypeFFN:
		return ffn.FromDump(data)
	case cnf.ModelTypeNN:
		return nn.FromDump(data)
	default:
		return nil, ErrNoSuchModel
	}
}
