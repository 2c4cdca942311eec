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

package ffn

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"

	"github.com/eeshabandaru/fuel-efficient-route-tracker/cnf"
	"github.com/eeshabandaru/fuel-efficient-route-tracker/dataset"
	"github.com/eeshabandaru/fuel-efficient-route-tracker/feats"
	"github.com/patrikeh/go-deep/training"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
)

const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-7
)

type jsonizedLayer struct {
	Rows    int       `json:"rows"`
	Cols    int       `json:"cols"`
	Weights []float64 `json:"weights"`
	Biases  []float64 `json:"biases"`
}

type jsonizedModel struct {
	Layers       []jsonizedLayer `json:"layers"`
	HiddenLayers []int           `json:"hiddenLayers"`
	DropoutRate  float64         `json:"dropoutRate"`
	Epochs       int             `json:"epochs"`
}

// Model is a feedforward regression network with ReLU hidden layers,
// dropout after each of them and a single linear output.
// Once trained, the model is read-only and Predict is safe
// for concurrent use.
type Model struct {
	layers []layer
	conf   cnf.TrainingConf
}

func (m *Model) GetInfo() string {
	return fmt.Sprintf(
		"FFN model, layout: %d -> %v -> 1, dropout: %.2f, epochs: %d",
		feats.NumFeatures, m.conf.HiddenLayers, m.conf.DropoutRate, m.conf.Epochs,
	)
}

func (m *Model) params() [][]float64 {
	ans := make([][]float64, 0, 2*len(m.layers))
	for _, ly := range m.layers {
		ans = append(ans, ly.W.RawMatrix().Data, ly.B.RawMatrix().Data)
	}
	return ans
}

func numParams(params [][]float64) int {
	var ans int
	for _, p := range params {
		ans += len(p)
	}
	return ans
}

// applyGradients updates all the parameters in place. The solver
// indexes parameters by their position in the flattened list
// and expects the step t to start from 1.
func (m *Model) applyGradients(solver training.Solver, grads [][]float64, t int) {
	var offset int
	for i, p := range m.params() {
		for j := range p {
			p[j] += solver.Update(p[j], grads[i][j], t, offset+j)
		}
		offset += len(p)
	}
}

func (m *Model) examplesLoss(examples []dataset.Example) float64 {
	return dataset.MeanSquaredError(examples, m.Predict)
}

// Train fits the network with mini-batch Adam. The training data
// are shuffled in each epoch. The valid examples are only used to report
// validation loss.
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
	rnd := rand.New(rand.NewPCG(m.conf.Seed, 1))
	m.layers = newLayers(feats.NumFeatures, m.conf.HiddenLayers, rnd)
	solver := training.NewAdam(m.conf.LearningRate, adamBeta1, adamBeta2, adamEpsilon)
	solver.Init(numParams(m.params()))
	var step int
	order := make([]int, len(trn))
	for i := range order {
		order[i] = i
	}
	inputs := make([]feats.FeatureVector, 0, m.conf.BatchSize)
	responses := make([]float64, 0, m.conf.BatchSize)

	for epoch := 1; epoch <= m.conf.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("training interrupted in epoch %d: %w", epoch, err)
		}
		rnd.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		var lossSum float64
		for start := 0; start < len(order); start += m.conf.BatchSize {
			end := min(start+m.conf.BatchSize, len(order))
			inputs, responses = inputs[:0], responses[:0]
			for _, idx := range order[start:end] {
				inputs = append(inputs, trn[idx].Input)
				responses = append(responses, trn[idx].Response)
			}
			fp := forward(m.layers, batchMatrix(inputs), m.conf.DropoutRate, rnd)
			grads, loss := backward(m.layers, fp, responses)
			lossSum += loss * float64(end-start)
			gradData := make([][]float64, 0, 2*len(grads))
			for _, g := range grads {
				gradData = append(gradData, g.W.RawMatrix().Data, g.B.RawMatrix().Data)
			}
			step++
			m.applyGradients(solver, gradData, step)
		}
		report := dataset.EpochReport{
			Epoch:   epoch,
			Loss:    lossSum / float64(len(trn)),
			ValLoss: m.examplesLoss(valid),
		}
		log.Debug().
			Int("epoch", epoch).
			Float64("loss", report.Loss).
			Float64("valLoss", report.ValLoss).
			Msg("finished training epoch")
		if onEpoch != nil {
			onEpoch(report)
		}
	}
	return nil
}

// Predict evaluates the network without dropout
func (m *Model) Predict(input feats.FeatureVector) float64 {
	fp := forward(m.layers, batchMatrix([]feats.FeatureVector{input}), 0, nil)
	return fp.out.At(0, 0)
}

// Dump exports the network in a JSON-serializable form
func (m *Model) Dump() (json.RawMessage, error) {
	if len(m.layers) == 0 {
		return nil, fmt.Errorf("failed to dump FFN model: not trained")
	}
	tmp := jsonizedModel{
		Layers:       make([]jsonizedLayer, len(m.layers)),
		HiddenLayers: m.conf.HiddenLayers,
		DropoutRate:  m.conf.DropoutRate,
		Epochs:       m.conf.Epochs,
	}
	for i, ly := range m.layers {
		r, c := ly.W.Dims()
		tmp.Layers[i] = jsonizedLayer{
			Rows:    r,
			Cols:    c,
			Weights: mat.DenseCopyOf(ly.W).RawMatrix().Data,
			Biases:  mat.Row(nil, 0, ly.B),
		}
	}
	ans, err := json.Marshal(tmp)
	if err != nil {
		return nil, fmt.Errorf("failed to dump FFN model: %w", err)
	}
	return ans, nil
}

// FromDump restores a model exported by Dump
func FromDump(data json.RawMessage) (*Model, error) {
	var tmp jsonizedModel
	if err := json.Unmarshal(data, &tmp); err != nil {
		return nil, fmt.Errorf("failed to load FFN model: %w", err)
	}
	if len(tmp.Layers) == 0 {
		return nil, fmt.Errorf("failed to load FFN model: no layers")
	}
	ans := &Model{
		layers: make([]layer, len(tmp.Layers)),
		conf: cnf.TrainingConf{
			ModelType:    cnf.ModelTypeFFN,
			HiddenLayers: tmp.HiddenLayers,
			DropoutRate:  tmp.DropoutRate,
			Epochs:       tmp.Epochs,
		},
	}
	prevCols := feats.NumFeatures
	for i, jl := range tmp.Layers {
		if jl.Cols <= 0 || jl.Rows != prevCols ||
			jl.Rows*jl.Cols != len(jl.Weights) || len(jl.Biases) != jl.Cols {
			return nil, fmt.Errorf("failed to load FFN model: invalid shape of layer %d", i)
		}
		ans.layers[i] = layer{
			W: mat.NewDense(jl.Rows, jl.Cols, jl.Weights),
			B: mat.NewDense(1, jl.Cols, jl.Biases),
		}
		prevCols = jl.Cols
	}
	if prevCols != 1 {
		return nil, fmt.Errorf("failed to load FFN model: output layer must have a single unit")
	}
	return ans, nil
}

func NewModel(conf cnf.TrainingConf) *Model {
	return &Model{conf: conf}
}
