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
	"math"
	"math/rand/v2"

	"github.com/eeshabandaru/fuel-efficient-route-tracker/feats"
	"gonum.org/v1/gonum/mat"
)

type layer struct {
	W *mat.Dense // in x out
	B *mat.Dense // 1 x out
}

type forwardPass struct {

	// inputs contains input of each layer (i.e. the output
	// of the previous layer after ReLU and dropout)
	inputs []*mat.Dense

	// preAct contains values of each layer before activation
	preAct []*mat.Dense

	// masks are dropout masks of hidden layers; nil in inference
	masks []*mat.Dense

	out *mat.Dense
}

// newLayers creates a dense ReLU network with a single linear output.
// Weights use the Glorot uniform initialization, biases are zero.
func newLayers(inputs int, hidden []int, rnd *rand.Rand) []layer {
	sizes := append([]int{inputs}, hidden...)
	sizes = append(sizes, 1)
	ans := make([]layer, len(sizes)-1)
	for i := range ans {
		fanIn, fanOut := sizes[i], sizes[i+1]
		limit := math.Sqrt(6 / float64(fanIn+fanOut))
		w := make([]float64, fanIn*fanOut)
		for j := range w {
			w[j] = (rnd.Float64()*2 - 1) * limit
		}
		ans[i] = layer{
			W: mat.NewDense(fanIn, fanOut, w),
			B: mat.NewDense(1, fanOut, nil),
		}
	}
	return ans
}

func addBias(z, b *mat.Dense) {
	rows, _ := z.Dims()
	bias := b.RawRowView(0)
	for i := 0; i < rows; i++ {
		row := z.RawRowView(i)
		for j := range row {
			row[j] += bias[j]
		}
	}
}

func relu(_, _ int, v float64) float64 {
	return max(v, 0)
}

// dropoutMask creates an inverted dropout mask: each item is zero
// with the probability rate, otherwise 1 / (1 - rate).
func dropoutMask(rows, cols int, rate float64, rnd *rand.Rand) *mat.Dense {
	keep := 1 / (1 - rate)
	data := make([]float64, rows*cols)
	for i := range data {
		if rnd.Float64() >= rate {
			data[i] = keep
		}
	}
	return mat.NewDense(rows, cols, data)
}

// forward runs the network on a batch (one row per example).
// If rnd is not nil, dropout is applied to hidden layers.
func forward(layers []layer, x *mat.Dense, dropout float64, rnd *rand.Rand) *forwardPass {
	fp := &forwardPass{
		inputs: make([]*mat.Dense, 0, len(layers)),
		preAct: make([]*mat.Dense, 0, len(layers)),
		masks:  make([]*mat.Dense, 0, len(layers)-1),
	}
	a := x
	for l, ly := range layers {
		fp.inputs = append(fp.inputs, a)
		rows, _ := a.Dims()
		_, outDim := ly.W.Dims()
		z := mat.NewDense(rows, outDim, nil)
		z.Mul(a, ly.W)
		addBias(z, ly.B)
		fp.preAct = append(fp.preAct, z)
		if l == len(layers)-1 {
			fp.out = z
			break
		}
		h := mat.NewDense(rows, outDim, nil)
		h.Apply(relu, z)
		var mask *mat.Dense
		if rnd != nil && dropout > 0 {
			mask = dropoutMask(rows, outDim, dropout, rnd)
			h.MulElem(h, mask)
		}
		fp.masks = append(fp.masks, mask)
		a = h
	}
	return fp
}

// backward computes MSE loss of a forward pass and gradients
// of all the layer parameters.
func backward(layers []layer, fp *forwardPass, y []float64) ([]layer, float64) {
	rows, _ := fp.out.Dims()
	delta := mat.NewDense(rows, 1, nil)
	var loss float64
	for i := 0; i < rows; i++ {
		d := fp.out.At(i, 0) - y[i]
		loss += d * d
		delta.Set(i, 0, 2*d/float64(rows))
	}
	loss /= float64(rows)

	grads := make([]layer, len(layers))
	for l := len(layers) - 1; l >= 0; l-- {
		in := fp.inputs[l]
		_, inDim := in.Dims()
		_, outDim := delta.Dims()
		gw := mat.NewDense(inDim, outDim, nil)
		gw.Mul(in.T(), delta)
		gb := mat.NewDense(1, outDim, nil)
		gbRow := gb.RawRowView(0)
		for i := 0; i < rows; i++ {
			for j, v := range delta.RawRowView(i) {
				gbRow[j] += v
			}
		}
		grads[l] = layer{W: gw, B: gb}
		if l == 0 {
			break
		}
		prev := mat.NewDense(rows, inDim, nil)
		prev.Mul(delta, layers[l].W.T())
		if mask := fp.masks[l-1]; mask != nil {
			prev.MulElem(prev, mask)
		}
		z := fp.preAct[l-1]
		prev.Apply(
			func(i, j int, v float64) float64 {
				if z.At(i, j) <= 0 {
					return 0
				}
				return v
			},
			prev,
		)
		delta = prev
	}
	return grads, loss
}

func batchMatrix(inputs []feats.FeatureVector) *mat.Dense {
	data := make([]float64, 0, len(inputs)*feats.NumFeatures)
	for _, v := range inputs {
		data = append(data, v[:]...)
	}
	return mat.NewDense(len(inputs), feats.NumFeatures, data)
}
