package scoring

import "github.com/davidleathers/fraud-scoring-service/internal/ml"

// FraudThreshold is the verdict cut-off; a probability must exceed it
const FraudThreshold = ml.DecisionThreshold

// Tracer and meter instrumentation scope
const instrumentationName = "fraud-scoring/scoring"
