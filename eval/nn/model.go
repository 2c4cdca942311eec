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

package nn

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/eeshabandaru/fuel-efficient-route-tracker/cnf"
	"github.com/eeshabandaru/fuel-efficient-route-tracker/dataset"
	"github.com/eeshabandaru/fuel-efficient-route-tracker/feats"
	deep "github.com/patrikeh/go-deep"
	"github.com/patrikeh/go-deep/training"
	"github.com/rs/zerolog/log"
)

type jsonizedModel struct {
	NeuralNet    *deep.Dump `json:"neuralNet"`
	HiddenLayers []int      `json:"hiddenLayers"`
	Epochs       int        `json:"epochs"`
}

// Model is a go-deep regression network. The library has no dropout
// layer so the configured dropout rate is ignored. The library trains
// all the epochs in one call so Train reports only the final epoch.
type Model struct {
	NeuralNet *deep.Neural
	conf      cnf.TrainingConf

	// mu serializes inference as go-deep stores
	// activations inside the network's neurons
	mu sync.Mutex
}

func (m *Model) GetInfo() string {
	return fmt.Sprintf(
		"NN model (go-deep), layout: %d -> %v -> 1, no dropout, epochs: %d",
		feats.NumFeatures, m.conf.HiddenLayers, m.conf.Epochs,
	)
}

func toExamples(data []dataset.Example) training.Examples {
	ans := make(training.Examples, len(data))
	for i, ex := range data {
		ans[i] = training.Example{
			Input:    append([]float64{}, ex.Input[:]...),
			Response: []float64{ex.Response},
		}
	}
	return ans
}

func (m *Model) Train(
	ctx context.Context,
	trn, valid []dataset.Example,
	onEpoch dataset.EpochCallback,
) error {
	if len(trn) == 0 {
		return fmt.Errorf("no training data provided")
	}
	if m.conf.BatchSize <= 0 || m.conf.Epochs <= 0 {
		return fmt.Errorf("invalid training configuration: %s", m.conf)
	}
	layout := append(append([]int{}, m.conf.HiddenLayers...), 1)
	m.NeuralNet = deep.NewNeural(&deep.Config{
		Inputs:     feats.NumFeatures,
		Layout:     layout,
		Activation: deep.ActivationReLU,
		Mode:       deep.ModeRegression,
		Weight:     deep.NewNormal(0.1, 0.0),
		Loss:       deep.LossMeanSquared,
		Bias:       true,
	})
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("training interrupted: %w", err)
	}
	optimizer := training.NewAdam(m.conf.LearningRate, 0.9, 0.999, 1e-8)
	trainer := training.NewBatchTrainer(optimizer, 0, m.conf.BatchSize, 1)
	// the trainer keeps its optimizer state only within a single Train call
	// so all the epochs run at once
	trainer.Train(m.NeuralNet, toExamples(trn), training.Examples{}, m.conf.Epochs)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("training interrupted: %w", err)
	}
	report := dataset.EpochReport{
		Epoch:   m.conf.Epochs,
		Loss:    dataset.MeanSquaredError(trn, m.Predict),
		ValLoss: dataset.MeanSquaredError(valid, m.Predict),
	}
	log.Debug().
		Int("epochs", report.Epoch).
		Float64("loss", report.Loss).
		Float64("valLoss", report.ValLoss).
		Msg("finished training")
	if onEpoch != nil {
		onEpoch(report)
	}
	return nil
}

func (m *Model) Predict(input feats.FeatureVector) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.NeuralNet.Predict(input[:])[0]
}

func (m *Model) Dump() (json.RawMessage, error) {
	if m.NeuralNet == nil {
		return nil, fmt.Errorf("failed to dump NN model: not trained")
	}
	ans, err := json.Marshal(jsonizedModel{
		NeuralNet:    m.NeuralNet.Dump(),
		HiddenLayers: m.conf.HiddenLayers,
		Epochs:       m.conf.Epochs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to dump NN model: %w", err)
	}
	return ans, nil
}

func FromDump(data json.RawMessage) (*Model, error) {
	var model jsonizedModel
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("failed to load Neural Network model: %w", err)
	}
	if model.NeuralNet == nil {
		return nil, fmt.Errorf("failed to load Neural Network model: missing network")
	}
	return &Model{
		NeuralNet: deep.FromDump(model.NeuralNet),
		conf: cnf.TrainingConf{
			ModelType:    cnf.ModelTypeNN,
			HiddenLayers: model.HiddenLayers,
			Epochs:       model.Epochs,
		},
	}, nil
}

func NewModel(conf cnf.TrainingConf) *Model {
	return &Model{conf: conf}
}
