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

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eeshabandaru/fuel-efficient-route-tracker/cnf"
	"github.com/eeshabandaru/fuel-efficient-route-tracker/eval"
	"github.com/eeshabandaru/fuel-efficient-route-tracker/feats"
	"github.com/eeshabandaru/fuel-efficient-route-tracker/stats"
	"github.com/rs/zerolog/log"
)

func recordTraining(
	conf *cnf.Conf,
	table *feats.TrainingTable,
	result *eval.TrainingResult,
	paths map[eval.Target]string,
	created time.Time,
) error {
	db, err := openStatsDB(conf)
	if err != nil {
		return err
	}
	defer db.Close()
	run := stats.TrainingRun{
		Created:           created,
		ModelType:         conf.Training.ModelType,
		Conf:              conf.Training.String(),
		NumTrain:          result.NumTrain,
		NumValid:          result.NumValid,
		NumTest:           result.NumTest,
		Unmatched:         table.Report.Unmatched,
		InvalidEfficiency: table.Report.InvalidEfficiency,
	}
	for _, t := range eval.Targets {
		run.Models = append(run.Models, stats.ModelResult{
			Target:  string(t),
			TestMSE: result.Models[t].TestMSE,
			Path:    paths[t],
		})
	}
	id, err := db.CreateNewTraining(run)
	if err != nil {
		return err
	}
	log.Info().Int64("trainingId", id).Msg("training run recorded")
	return nil
}

// recordEvaluation stores the recomputed test errors
// with the most recent training run
func recordEvaluation(conf *cnf.Conf, mse map[eval.Target]float64) error {
	db, err := openStatsDB(conf)
	if err != nil {
		return err
	}
	defer db.Close()
	paths := eval.ModelPaths(conf.ModelsDir)
	results := make([]stats.ModelResult, 0, len(eval.Targets))
	for _, t := range eval.Targets {
		results = append(results, stats.ModelResult{
			Target:  string(t),
			TestMSE: mse[t],
			Path:    paths[t],
		})
	}
	id, err := db.UpdateLatestResults(results)
	if err != nil {
		return err
	}
	if id < 0 {
		log.Warn().Msg("no training run recorded yet, evaluation not stored")
		return nil
	}
	log.Info().Int64("trainingId", id).Msg("evaluation recorded")
	return nil
}

func runActionLearn(conf *cnf.Conf, featuresPath string) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	t0 := time.Now()
	table, err := loadTrainingTable(conf, featuresPath)
	if err != nil {
		exitWithError(err, exitErrorFeatures)
	}
	result, err := eval.NewPipeline(conf.Training, true).Train(ctx, table)
	if errors.Is(err, context.Canceled) {
		log.Warn().Msg("training interrupted, no model saved")
		fmt.Fprintln(os.Stderr, "training interrupted, no model saved")
		os.Exit(exitErrorInterrupted)

	} else if err != nil {
		exitWithError(err, exitErrorTrainingFailed)
	}
	paths, err := eval.SaveModels(conf.ModelsDir, result.Models)
	if err != nil {
		exitWithError(err, exitErrorPersistFailed)
	}
	for _, t := range eval.Targets {
		fmt.Printf("%s\n\tsaved to %s\n", result.Models[t].GetInfo(), paths[t])
	}
	if conf.StatsDBPath != "" {
		if err := recordTraining(conf, table, result, paths, t0); err != nil {
			exitWithError(err, exitErrorStatsDB)
		}
	}
}

func runActionEvaluate(conf *cnf.Conf, featuresPath, reportPath string) {
	models, err := eval.LoadModels(conf.ModelsDir)
	if err != nil {
		exitWithError(err, exitErrorModelsLoading)
	}
	table, err := loadTrainingTable(conf, featuresPath)
	if err != nil {
		exitWithError(err, exitErrorFeatures)
	}
	part, err := eval.NewPipeline(conf.Training, false).Split(table)
	if err != nil {
		exitWithError(err, exitErrorGeneralFailure)
	}
	log.Info().
		Int("testSize", len(part.Test)).
		Msg("evaluating models on the test split")
	var reporter *eval.Reporter
	if reportPath != "" {
		reporter = &eval.Reporter{OutPath: reportPath}
	}
	mse := make(map[eval.Target]float64)
	for _, t := range eval.Targets {
		m := models[t]
		mse[t] = eval.TestMSEWithReport(m, table, part, reporter)
		fmt.Printf(
			"%s: test MSE %.4f (stored: %.4f, created %s)\n",
			t, mse[t], m.TestMSE, m.Created.Format(time.RFC3339),
		)
	}
	if reporter != nil {
		if err := reporter.SaveResiduals(); err != nil {
			exitWithError(err, exitErrorGeneralFailure)
		}
		log.Info().Str("file", reportPath).Msg("saved test split residuals")
	}
	if conf.StatsDBPath != "" {
		if err := recordEvaluation(conf, mse); err != nil {
			exitWithError(err, exitErrorStatsDB)
		}
	}
}
