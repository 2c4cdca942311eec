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

package stats

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

func (database *Database) createTrainingTable() error {
	_, err := database.db.Exec(
		"CREATE TABLE training (" +
			"id INTEGER PRIMARY KEY AUTOINCREMENT, " +
			"fingerprint TEXT NOT NULL UNIQUE, " +
			"datetime INTEGER NOT NULL, " +
			"model_type TEXT NOT NULL, " +
			"conf TEXT, " +
			"num_train INT NOT NULL, " +
			"num_valid INT NOT NULL, " +
			"num_test INT NOT NULL, " +
			"unmatched INT NOT NULL DEFAULT 0, " +
			"invalid_efficiency INT NOT NULL DEFAULT 0" +
			")",
	)
	if err != nil {
		return fmt.Errorf("failed to create table training: %w", err)
	}
	log.Info().Msg("created table `training`")
	return nil
}

func (database *Database) createTrainingModelTable() error {
	_, err := database.db.Exec(
		"CREATE TABLE training_model (" +
			"training_id INTEGER NOT NULL, " +
			"target TEXT NOT NULL, " +
			"test_mse FLOAT NOT NULL, " +
			"path TEXT, " +
			"PRIMARY KEY(training_id, target), " +
			"FOREIGN KEY(training_id) REFERENCES training(id)" +
			")",
	)
	if err != nil {
		return fmt.Errorf("failed to create table training_model: %w", err)
	}
	log.Info().Msg("created table `training_model`")
	return nil
}

// CreateNewTraining stores a training run together with its
// model results and returns the ID of the new run.
func (database *Database) CreateNewTraining(run TrainingRun) (int64, error) {
	if run.Created.IsZero() {
		run.Created = time.Now()
	}
	if run.Fingerprint == "" {
		run.Fingerprint = RunFingerprint(run.Created, run.Conf)
	}
	tx, err := database.db.Begin()
	if err != nil {
		return -1, fmt.Errorf("failed to create new training: %w", err)
	}
	ans, err := tx.Exec(
		"INSERT INTO training (fingerprint, datetime, model_type, conf, num_train, num_valid, "+
			"num_test, unmatched, invalid_efficiency) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		run.Fingerprint,
		run.Created.Unix(),
		run.ModelType,
		run.Conf,
		run.NumTrain,
		run.NumValid,
		run.NumTest,
		run.Unmatched,
		run.InvalidEfficiency,
	)
	if err != nil {
		tx.Rollback()
		return -1, fmt.Errorf("failed to create new training: %w", err)
	}
	id, err := ans.LastInsertId()
	if err != nil {
		tx.Rollback()
		return -1, fmt.Errorf("failed to create new training: %w", err)
	}
	for _, m := range run.Models {
		_, err := tx.Exec(
			"INSERT INTO training_model (training_id, target, test_mse, path) VALUES (?, ?, ?, ?)",
			id, m.Target, m.TestMSE, m.Path,
		)
		if err != nil {
			tx.Rollback()
			return -1, fmt.Errorf("failed to create new training: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return -1, fmt.Errorf("failed to create new training: %w", err)
	}
	return id, nil
}

// AddModelResult adds (or replaces) evaluation of a model
// within an existing training run.
func (database *Database) AddModelResult(trainingID int64, res ModelResult) error {
	_, err := database.db.Exec(
		"INSERT OR REPLACE INTO training_model (training_id, target, test_mse, path) "+
			"VALUES (?, ?, ?, ?)",
		trainingID, res.Target, res.TestMSE, res.Path,
	)
	if err != nil {
		return fmt.Errorf("failed to add model result: %w", err)
	}
	return nil
}

func (database *Database) getModelResults(trainingID int64) ([]ModelResult, error) {
	rows, err := database.db.Query(
		"SELECT target, test_mse, path FROM training_model WHERE training_id = ? ORDER BY target",
		trainingID,
	)
	if err != nil {
		return []ModelResult{}, fmt.Errorf("failed to get model results: %w", err)
	}
	defer rows.Close()
	ans := make([]ModelResult, 0, 2)
	for rows.Next() {
		var v ModelResult
		var path sql.NullString
		if err := rows.Scan(&v.Target, &v.TestMSE, &path); err != nil {
			return []ModelResult{}, fmt.Errorf("failed to get model results: %w", err)
		}
		v.Path = path.String
		ans = append(ans, v)
	}
	return ans, rows.Err()
}

// GetTrainings lists training runs starting from the most recent one
func (database *Database) GetTrainings(filter ListFilter) ([]TrainingRun, error) {
	query := "SELECT id, fingerprint, datetime, model_type, conf, num_train, num_valid, num_test, " +
		"unmatched, invalid_efficiency FROM training WHERE %s ORDER BY datetime DESC, id DESC"
	whereChunks := make([]string, 0, 2)
	whereChunks = append(whereChunks, "1 = 1")
	args := make([]any, 0, 2)
	if filter.ModelType != nil {
		whereChunks = append(whereChunks, "model_type = ?")
		args = append(args, *filter.ModelType)
	}
	query = fmt.Sprintf(query, strings.Join(whereChunks, " AND "))
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	rows, err := database.db.Query(query, args...)
	if err != nil {
		return []TrainingRun{}, fmt.Errorf("failed to fetch trainings: %w", err)
	}
	ans := make([]TrainingRun, 0, 20)
	for rows.Next() {
		var run TrainingRun
		var created int64
		var conf sql.NullString
		err := rows.Scan(
			&run.ID,
			&run.Fingerprint,
			&created,
			&run.ModelType,
			&conf,
			&run.NumTrain,
			&run.NumValid,
			&run.NumTest,
			&run.Unmatched,
			&run.InvalidEfficiency,
		)
		if err != nil {
			rows.Close()
			return []TrainingRun{}, fmt.Errorf("failed to fetch trainings: %w", err)
		}
		run.Created = time.Unix(created, 0)
		run.Conf = conf.String
		ans = append(ans, run)
	}
	rows.Close()
	for i := range ans {
		ans[i].Models, err = database.getModelResults(ans[i].ID)
		if err != nil {
			return []TrainingRun{}, err
		}
	}
	return ans, nil
}

// GetLatestTrainingID returns ID of the most recent training run
// or -1 if there is none.
func (database *Database) GetLatestTrainingID() (int64, error) {
	row := database.db.QueryRow("SELECT id FROM training ORDER BY datetime DESC, id DESC LIMIT 1")
	var ans int64
	err := row.Scan(&ans)
	if err == sql.ErrNoRows {
		return -1, nil

	} else if err != nil {
		return -1, fmt.Errorf("failed to get latest training: %w", err)
	}
	return ans, nil
}

// UpdateLatestResults replaces model results of the most recent
// training run. It returns ID of the run or -1 if there is no run yet.
func (database *Database) UpdateLatestResults(results []ModelResult) (int64, error) {
	id, err := database.GetLatestTrainingID()
	if err != nil || id < 0 {
		return id, err
	}
	for _, res := range results {
		if err := database.AddModelResult(id, res); err != nil {
			return -1, err
		}
	}
	return id, nil
}
