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

	"github.com/eeshabandaru/fuel-efficient-route-tracker/cnf"
	"github.com/eeshabandaru/fuel-efficient-route-tracker/feats"
	"github.com/rs/zerolog/log"
)

func runActionFeaturize(conf *cnf.Conf, dstPath string) {
	if dstPath == "" {
		exitWithError(fmt.Errorf("output file not specified"), exitErrorGeneralFailure)
	}
	table, err := loadTrainingTable(conf, "")
	if err != nil {
		exitWithError(err, exitErrorFeatures)
	}
	if err := feats.SaveTable(table, dstPath); err != nil {
		exitWithError(err, exitErrorFeatures)
	}
	log.Info().
		Str("file", dstPath).
		Int("rows", table.Len()).
		Msg("saved training table")
	fmt.Printf(
		"rows: %d (merged: %d, unmatched: %d, invalid efficiency: %d, dropped missing: %d)\n",
		table.Len(), table.Report.Merged, table.Report.Unmatched,
		table.Report.InvalidEfficiency, table.Report.DroppedMissing,
	)
}
