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
	"fmt"
	"time"

	"github.com/eeshabandaru/fuel-efficient-route-tracker/cnf"
	"github.com/eeshabandaru/fuel-efficient-route-tracker/dataset"
	"github.com/eeshabandaru/fuel-efficient-route-tracker/feats"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

// TrainingResult contains models of all the targets trained
// on the same train/test partition.
type TrainingResult struct {
	Partition dataset.Partition
	Models    map[Target]*Model
	NumTrain  int
	NumValid  int
	NumTest   int
}

// Pipeline splits a training table, scales features
// and trains one model per target.
type Pipeline struct {
	conf         cnf.TrainingConf
	showProgress bool
}

// Split creates the train/test partition shared by all the targets
func (p *Pipeline) Split(table *feats.TrainingTable) (dataset.Partition, error) {
	return dataset.Split(table.Len(), p.conf.TestRatio, p.conf.Seed)
}

func (p *Pipeline) examples(
	table *feats.TrainingTable,
	scaled []feats.FeatureVector,
	indexes []int,
	target Target,
) []dataset.Example {
	ans := make([]dataset.Example, len(indexes))
	for i, idx := range indexes {
		ans[i] = dataset.Example{
			Input:    scaled[idx],
			Response: target.Value(table.Rows[idx]),
		}
	}
	return ans
}

func (p *Pipeline) trainTarget(
	ctx context.Context,
	table *feats.TrainingTable,
	part dataset.Partition,
	target Target,
) (*Model, error) {
	allFeats := table.Features()
	trainFeats := make([]feats.FeatureVector, len(part.Train))
	for i, idx := range part.Train {
		trainFeats[i] = allFeats[idx]
	}
	scaler, err := dataset.NewFittedScaler(trainFeats)
	if err != nil {
		return nil, fmt.Errorf("failed to fit scaler for %s: %w", target, err)
	}
	scaled := scaler.TransformAll(allFeats)
	regressor, err := NewRegressor(p.conf)
	if err != nil {
		return nil, err
	}
	fitIdx, validIdx := dataset.Tail(part.Train, p.conf.ValidationSplit)
	var bar *progressbar.ProgressBar
	if p.showProgress {
		bar = progressbar.Default(int64(p.conf.Epochs), fmt.Sprintf("training %s", target))
	}
	err = regressor.Train(
		ctx,
		p.examples(table, scaled, fitIdx, target),
		p.examples(table, scaled, validIdx, target),
		func(report dataset.EpochReport) {
			if bar != nil {
				bar.Set(report.Epoch)
			}
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to train %s model: %w", target, err)
	}
	model := &Model{
		Target:    target,
		ModelType: p.conf.ModelType,
		Scaler:    scaler,
		Regressor: regressor,
		Created:   time.Now(),
	}
	model.TestMSE = TestMSE(model, table, part)
	log.Info().
		Str("target", string(target)).
		Float64("testMse", model.TestMSE).
		Msg("model trained")
	return model, nil
}

// Train trains models of all the targets. In case the context is
// cancelled, no (partial) result is returned.
func (p *Pipeline) Train(ctx context.Context, table *feats.TrainingTable) (*TrainingResult, error) {
	part, err := p.Split(table)
	if err != nil {
		return nil, err
	}
	fitIdx, validIdx := dataset.Tail(part.Train, p.conf.ValidationSplit)
	ans := &TrainingResult{
		Partition: part,
		Models:    make(map[Target]*Model),
		NumTrain:  len(fitIdx),
		NumValid:  len(validIdx),
		NumTest:   len(part.Test),
	}
	log.Info().
		Int("train", ans.NumTrain).
		Int("validation", ans.NumValid).
		Int("test", ans.NumTest).
		Str("conf", p.conf.String()).
		Msg("starting training")
	for _, target := range Targets {
		model, err := p.trainTarget(ctx, table, part, target)
		if err != nil {
			return nil, err
		}
		ans.Models[target] = model
	}
	return ans, nil
}

// TestMSE evaluates a model on the test part of a partition
func TestMSE(model *Model, table *feats.TrainingTable, part dataset.Partition) float64 {
	return testMSE(model, table, part, nil)
}

// TestMSEWithReport evaluates a model like TestMSE and passes
// all the test predictions to the reporter.
func TestMSEWithReport(
	model *Model,
	table *feats.TrainingTable,
	part dataset.Partition,
	reporter *Reporter,
) float64 {
	if reporter == nil {
		return testMSE(model, table, part, nil)
	}
	return testMSE(model, table, part, reporter)
}

func testMSE(
	model *Model,
	table *feats.TrainingTable,
	part dataset.Partition,
	reporter residualReporter,
) float64 {
	if len(part.Test) == 0 {
		return 0
	}
	var sum float64
	for _, idx := range part.Test {
		row := table.Rows[idx]
		pred := model.Predict(row.Features)
		d := pred - model.Target.Value(row)
		sum += d * d
		if reporter != nil {
			reporter.AddResidual(model.Target, idx, row, pred)
		}
	}
	return sum / float64(len(part.Test))
}

func NewPipeline(conf cnf.TrainingConf, showProgress bool) *Pipeline {
	return &Pipeline{conf: conf, showProgress: showProgress}
}
