package stats

import "time"

// TrainingRun describes a single run of the `learn` action
type TrainingRun struct {
	ID          int64
	Fingerprint string
	Created     time.Time
	ModelType   string

	// Conf contains a human readable summary of hyperparameters
	Conf string

	NumTrain int
	NumValid int
	NumTest  int

	// Unmatched and InvalidEfficiency are numbers of rows
	// removed by the feature engineering
	Unmatched         int
	InvalidEfficiency int

	Models []ModelResult
}

// ModelResult is an evaluation of one of the trained models
type ModelResult struct {
	Target  string
	TestMSE float64
	Path    string
}
