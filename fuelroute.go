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
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/czcorpus/cnc-gokit/logging"
	"github.com/eeshabandaru/fuel-efficient-route-tracker/apiserver"
	"github.com/eeshabandaru/fuel-efficient-route-tracker/cnf"
)

const (
	actionFeaturize = "featurize"
	actionLearn     = "learn"
	actionEvaluate  = "evaluate"
	actionServer    = "server"
	actionHistory   = "history"
	actionVersion   = "version"
	actionHelp      = "help"
)

const (
	exitErrorGeneralFailure = iota + 1
	exitErrorInvalidConfig
	exitErrorFeatures
	exitErrorTrainingFailed
	exitErrorInterrupted
	exitErrorPersistFailed
	exitErrorModelsLoading
	exitErrorStatsDB
)

var (
	version   string
	buildDate string
	gitCommit string
)

// VersionInfo provides a detailed information about the actual build
type VersionInfo struct {
	Version   string `json:"version"`
	BuildDate string `json:"buildDate"`
	GitCommit string `json:"gitCommit"`
}

func topLevelUsage() {
	fmt.Fprintf(os.Stderr, "FUELROUTE - fuel consumption and CO2 emissions models for routes\n")
	fmt.Fprintf(os.Stderr, "-----------------------------\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "\t%s\t\tmerge source datasets and store the training table\n", actionFeaturize)
	fmt.Fprintf(os.Stderr, "\t%s\t\t\ttrain and save both models\n", actionLearn)
	fmt.Fprintf(os.Stderr, "\t%s\t\tevaluate saved models on the test split\n", actionEvaluate)
	fmt.Fprintf(os.Stderr, "\t%s\t\t\trun the prediction HTTP API\n", actionServer)
	fmt.Fprintf(os.Stderr, "\t%s\t\tlist recorded training runs\n", actionHistory)
	fmt.Fprintf(os.Stderr, "\t%s\t\tshow version info\n", actionVersion)
	fmt.Fprintf(os.Stderr, "\nUse `fuelroute help ACTION` for information about a specific action\n\n")
}

func setup(confPath string) *cnf.Conf {
	conf := cnf.LoadConfig(confPath)
	if conf.Logging.Level == "" {
		conf.Logging.Level = "info"
	}
	logging.SetupLogging(conf.Logging)
	if err := cnf.ValidateAndDefaults(conf); err != nil {
		exitWithError(fmt.Errorf("invalid configuration: %w", err), exitErrorInvalidConfig)
	}
	return conf
}

func cleanVersionInfo(v string) string {
	return strings.TrimLeft(strings.Trim(v, "'"), "v")
}

func runActionVersion(ver VersionInfo) {
	fmt.Fprintf(os.Stderr, "fuelroute %s (build date: %s, last commit: %s)\n", ver.Version, ver.BuildDate, ver.GitCommit)
}

func runActionServer(conf *cnf.Conf) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	apiserver.Run(ctx, conf)
}

func actionUsage(fs *flag.FlagSet, args, desc string) func() {
	return func() {
		fmt.Fprintf(
			os.Stderr,
			"Usage:\t%s %s [options] %s\n\t",
			filepath.Base(os.Args[0]), fs.Name(), args)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n%s\n", desc)
	}
}

func main() {
	version := VersionInfo{
		Version:   cleanVersionInfo(version),
		BuildDate: cleanVersionInfo(buildDate),
		GitCommit: cleanVersionInfo(gitCommit),
	}

	cmdFeaturize := flag.NewFlagSet(actionFeaturize, flag.ExitOnError)
	cmdFeaturize.Usage = actionUsage(
		cmdFeaturize, "config.json out.msgpack",
		"Load and merge the source datasets and store the training table "+
			"(msgpack, or CSV if the output file ends with .csv)",
	)

	cmdLearn := flag.NewFlagSet(actionLearn, flag.ExitOnError)
	learnFeatures := cmdLearn.String(
		"features", "", "use a training table created by the featurize action instead of source datasets")
	cmdLearn.Usage = actionUsage(
		cmdLearn, "config.json",
		"Train the fuel consumption and CO2 emissions models and save them to the models directory",
	)

	cmdEvaluate := flag.NewFlagSet(actionEvaluate, flag.ExitOnError)
	evalFeatures := cmdEvaluate.String(
		"features", "", "use a training table created by the featurize action instead of source datasets")
	evalReport := cmdEvaluate.String(
		"report", "", "write test split predictions sorted by absolute error to a TSV file")
	cmdEvaluate.Usage = actionUsage(
		cmdEvaluate, "config.json",
		"Load saved models and calculate their MSE on the test split",
	)

	cmdServer := flag.NewFlagSet(actionServer, flag.ExitOnError)
	cmdServer.Usage = actionUsage(cmdServer, "config.json", "Run the prediction HTTP API")

	cmdHistory := flag.NewFlagSet(actionHistory, flag.ExitOnError)
	historyLimit := cmdHistory.Int("limit", 20, "max. number of listed runs (0 = all)")
	historyModelType := cmdHistory.String("model-type", "", "list only runs of a specific model type (ffn, nn)")
	cmdHistory.Usage = actionUsage(cmdHistory, "config.json", "List training runs recorded in the stats database")

	cmdVersion := flag.NewFlagSet(actionVersion, flag.ExitOnError)
	cmdVersion.Usage = func() {
		cmdVersion.PrintDefaults()
	}

	cmdHelp := flag.NewFlagSet(actionHelp, flag.ExitOnError)
	cmdHelp.Usage = func() {
		topLevelUsage()
	}

	action := actionHelp
	if len(os.Args) > 1 {
		action = os.Args[1]
	}

	switch action {
	case actionHelp:
		var subj string
		if len(os.Args) > 2 {
			cmdHelp.Parse(os.Args[2:])
			subj = cmdHelp.Arg(0)
		}
		switch subj {
		case actionFeaturize:
			cmdFeaturize.Usage()
		case actionLearn:
			cmdLearn.Usage()
		case actionEvaluate:
			cmdEvaluate.Usage()
		case actionServer:
			cmdServer.Usage()
		case actionHistory:
			cmdHistory.Usage()
		default:
			topLevelUsage()
		}
	case actionVersion:
		cmdVersion.Parse(os.Args[2:])
		runActionVersion(version)
	case actionFeaturize:
		cmdFeaturize.Parse(os.Args[2:])
		conf := setup(cmdFeaturize.Arg(0))
		runActionFeaturize(conf, cmdFeaturize.Arg(1))
	case actionLearn:
		cmdLearn.Parse(os.Args[2:])
		conf := setup(cmdLearn.Arg(0))
		runActionLearn(conf, *learnFeatures)
	case actionEvaluate:
		cmdEvaluate.Parse(os.Args[2:])
		conf := setup(cmdEvaluate.Arg(0))
		runActionEvaluate(conf, *evalFeatures, *evalReport)
	case actionServer:
		cmdServer.Parse(os.Args[2:])
		conf := setup(cmdServer.Arg(0))
		runActionServer(conf)
	case actionHistory:
		cmdHistory.Parse(os.Args[2:])
		conf := setup(cmdHistory.Arg(0))
		runActionHistory(conf, *historyModelType, *historyLimit)
	default:
		fmt.Fprintf(os.Stderr, "Unknown action, please use 'help' to get more information\n")
		os.Exit(exitErrorGeneralFailure)
	}
}
