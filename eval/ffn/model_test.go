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
	"math"
	"math/rand/v2"
	"testing"

	"github.com/eeshabandaru/fuel-efficient-route-tracker/cnf"
	"github.com/eeshabandaru/fuel-efficient-route-tracker/dataset"
	"github.com/eeshabandaru/fuel-efficient-route-tracker/feats"
	"github.com/patrikeh/go-deep/training"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearExamples(n int, seed uint64) []dataset.Example {
	rnd := rand.New(rand.NewPCG(seed, 0))
	ans := make([]dataset.Example, n)
	for i := range ans {
		x := feats.FeatureVector{rnd.NormFloat64(), rnd.NormFloat64(), rnd.NormFloat64()}
		ans[i] = dataset.Example{Input: x, Response: 2*x[0] - x[1] + 0.5*x[2]}
	}
	return ans
}

func testingConf() cnf.TrainingConf {
	conf := cnf.DefaultTrainingConf()
	conf.HiddenLayers = []int{16, 8}
	conf.Epochs = 150
	conf.LearningRate = 0.01
	conf.DropoutRate = 0
	return conf
}

func TestGradientsMatchFiniteDifferences(t *testing.T) {
	rnd := rand.New(rand.NewPCG(1, 2))
	layers := newLayers(feats.NumFeatures, []int{4, 3}, rnd)
	examples := linearExamples(5, 3)
	inputs := make([]feats.FeatureVector, len(examples))
	y := make([]float64, len(examples))
	for i, ex := range examples {
		inputs[i] = ex.Input
		y[i] = ex.Response
	}
	x := batchMatrix(inputs)
	grads, _ := backward(layers, forward(layers, x, 0, nil), y)

	lossAt := func() float64 {
		_, loss := backward(layers, forward(layers, x, 0, nil), y)
		return loss
	}
	const h = 1e-6
	for l, ly := range layers {
		data := ly.W.RawMatrix().Data
		gdata := grads[l].W.RawMatrix().Data
		for j := range data {
			orig := data[j]
			data[j] = orig + h
			up := lossAt()
			data[j] = orig - h
			down := lossAt()
			data[j] = orig
			assert.InDelta(t, (up-down)/(2*h), gdata[j], 1e-5, "layer %d weight %d", l, j)
		}
		bdata := ly.B.RawMatrix().Data
		gbdata := grads[l].B.RawMatrix().Data
		for j := range bdata {
			orig := bdata[j]
			bdata[j] = orig + h
			up := lossAt()
			bdata[j] = orig - h
			down := lossAt()
			bdata[j] = orig
			assert.InDelta(t, (up-down)/(2*h), gbdata[j], 1e-5, "layer %d bias %d", l, j)
		}
	}
}

func TestDropoutMask(t *testing.T) {
	rnd := rand.New(rand.NewPCG(42, 0))
	mask := dropoutMask(200, 50, 0.3, rnd)
	var sum float64
	var zeros int
	for _, v := range mask.RawMatrix().Data {
		sum += v
		if v == 0 {
			zeros++

		} else {
			assert.InDelta(t, 1/0.7, v, 1e-12)
		}
	}
	assert.InDelta(t, 1.0, sum/10000, 0.05)
	assert.InDelta(t, 0.3, float64(zeros)/10000, 0.03)
}

func TestTrainFitsLinearFunction(t *testing.T) {
	trn := linearExamples(300, 10)
	test := linearExamples(100, 11)
	model := NewModel(testingConf())
	var reports []dataset.EpochReport
	err := model.Train(context.Background(), trn, test, func(r dataset.EpochReport) {
		reports = append(reports, r)
	})
	require.NoError(t, err)
	require.Len(t, reports, 150)
	assert.Less(t, reports[len(reports)-1].Loss, reports[0].Loss)
	// variance of the response is 5.25
	assert.Less(t, dataset.MeanSquaredError(test, model.Predict), 0.5)
}

func TestTrainWithDropout(t *testing.T) {
	conf := testingConf()
	conf.DropoutRate = 0.3
	conf.Epochs = 5
	model := NewModel(conf)
	require.NoError(t, model.Train(context.Background(), linearExamples(64, 1), nil, nil))
	v := model.Predict(feats.FeatureVector{1, 2, 3})
	assert.False(t, math.IsNaN(v))
	// inference is deterministic
	assert.Equal(t, v, model.Predict(feats.FeatureVector{1, 2, 3}))
}

func TestTrainCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	model := NewModel(testingConf())
	err := model.Train(ctx, linearExamples(10, 1), nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTrainNoData(t *testing.T) {
	model := NewModel(testingConf())
	assert.Error(t, model.Train(context.Background(), nil, nil, nil))
}

func TestDumpAndRestore(t *testing.T) {
	conf := testingConf()
	conf.Epochs = 3
	model := NewModel(conf)
	require.NoError(t, model.Train(context.Background(), linearExamples(40, 5), nil, nil))
	dump, err := model.Dump()
	require.NoError(t, err)
	restored, err := FromDump(dump)
	require.NoError(t, err)
	for _, ex := range linearExamples(10, 6) {
		assert.Equal(t, model.Predict(ex.Input), restored.Predict(ex.Input))
	}
	assert.Equal(t, model.GetInfo(), restored.GetInfo())
}

func TestDumpUntrained(t *testing.T) {
	_, err := NewModel(testingConf()).Dump()
	assert.Error(t, err)
}

func TestFromDumpInvalidShape(t *testing.T) {
	_, err := FromDump([]byte(`{"layers":[{"rows":2,"cols":1,"weights":[1,2],"biases":[0]}]}`))
	assert.Error(t, err)
	_, err = FromDump([]byte(`{"layers":[]}`))
	assert.Error(t, err)
	_, err = FromDump([]byte(`not json`))
	assert.Error(t, err)
}

func TestApplyGradientsFirstAdamStep(t *testing.T) {
	rnd := rand.New(rand.NewPCG(4, 5))
	model := NewModel(testingConf())
	model.layers = newLayers(feats.NumFeatures, []int{3}, rnd)
	before := make([][]float64, 0)
	grads := make([][]float64, 0)
	for _, p := range model.params() {
		before = append(before, append([]float64{}, p...))
		g := make([]float64, len(p))
		for j := range g {
			if j%2 == 0 {
				g[j] = 0.5
			} else {
				g[j] = -2
			}
		}
		grads = append(grads, g)
	}
	solver := training.NewAdam(0.01, adamBeta1, adamBeta2, adamEpsilon)
	solver.Init(numParams(model.params()))
	model.applyGradients(solver, grads, 1)

	// bias-corrected first Adam step moves every parameter by lr against the gradient sign
	for i, p := range model.params() {
		for j := range p {
			expected := before[i][j] - 0.01*math.Copysign(1, grads[i][j])
			assert.InDelta(t, expected, p[j], 1e-6)
		}
	}
}
