package model

// Artifact blob names
const (
	BlobClassifier = "classifier"
	BlobScaler     = "scaler"
	BlobSchema     = "feature_schema"
)

// Source records where a published snapshot came from
type Source string

const (
	SourceStorage   Source = "storage"
	SourceBootstrap Source = "bootstrap"
	SourceInstalled Source = "installed"
)

// Bootstrap dataset distributions
const (
	meanAmount         = 50.0
	meanAvgAmount      = 30.0
	meanDistance       = 10.0
	meanFrequency      = 5.0
	maxCardAgeDays     = 3649
	weekendProbability = 0.3
	nightProbability   = 0.2
	hoursPerDay        = 24
	daysPerWeek        = 7
)

// Label rule thresholds
const (
	nightAmountThreshold        = 200.0
	farAmountThreshold          = 500.0
	farDistanceThreshold        = 50.0
	earlyMorningHour            = 6
	earlyMorningAmountThreshold = 100.0
	highFrequencyThreshold      = 20.0
	highFrequencyAmount         = 50.0
	riskyMerchantCategory       = 9
	riskyMerchantAmount         = 300.0
)
