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
	"fmt"
	"os"

	"github.com/eeshabandaru/fuel-efficient-route-tracker/cnf"
	"github.com/eeshabandaru/fuel-efficient-route-tracker/dataimport"
	"github.com/eeshabandaru/fuel-efficient-route-tracker/feats"
	"github.com/eeshabandaru/fuel-efficient-route-tracker/stats"
	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
)

const (
	errColor = color.FgHiRed
)

func exitWithError(err error, exitCode int) {
	log.Error().Err(err).Int("exitCode", exitCode).Msg("action failed")
	color.New(errColor).Fprintln(os.Stderr, err)
	os.Exit(exitCode)
}

// loadTrainingTable either loads a previously featurized table
// or runs the feature engineering on configured datasets.
func loadTrainingTable(conf *cnf.Conf, featuresPath string) (*feats.TrainingTable, error) {
	if featuresPath != "" {
		table, err := feats.LoadTable(featuresPath)
		if err != nil {
			return nil, err
		}
		log.Info().
			Str("file", featuresPath).
			Int("rows", table.Len()).
			Msg("loaded training table")
		return table, nil
	}
	ds, err := dataimport.LoadDatasets(conf.Datasets)
	if err != nil {
		return nil, err
	}
	return feats.NewEngineer(conf.Features).Process(ds)
}

func openStatsDB(conf *cnf.Conf) (*stats.Database, error) {
	if conf.StatsDBPath == "" {
		return nil, fmt.Errorf("statsDbPath not configured")
	}
	db, err := stats.NewDatabase(conf.StatsDBPath)
	if err != nil {
		return nil, err
	}
	if err := db.Init(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func runActionHistory(conf *cnf.Conf, modelType string, limit int) {
	db, err := openStatsDB(conf)
	if err != nil {
		exitWithError(err, exitErrorStatsDB)
	}
	defer db.Close()
	filter := stats.ListFilter{}.SetLimit(limit)
	if modelType != "" {
		filter = filter.SetModelType(modelType)
	}
	runs, err := db.GetTrainings(filter)
	if err != nil {
		exitWithError(err, exitErrorStatsDB)
	}
	for _, run := range runs {
		fmt.Printf(
			"#%d %s [%s] train: %d, valid: %d, test: %d, dropped (unmatched/invalid): %d/%d\n",
			run.ID, run.Created.Format("2006-01-02 15:04:05"), run.ModelType,
			run.NumTrain, run.NumValid, run.NumTest, run.Unmatched, run.InvalidEfficiency,
		)
		for _, m := range run.Models {
			fmt.Printf("\t%s: test MSE %.4f (%s)\n", m.Target, m.TestMSE, m.Path)
		}
	}
}
