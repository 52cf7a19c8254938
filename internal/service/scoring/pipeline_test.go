package scoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/fraud-scoring-service/internal/domain/errors"
	"github.com/davidleathers/fraud-scoring-service/internal/domain/transaction"
	"github.com/davidleathers/fraud-scoring-service/internal/ml"
	"github.com/davidleathers/fraud-scoring-service/internal/service/features"
	"github.com/davidleathers/fraud-scoring-service/internal/service/model"
)

type mockClassifier struct {
	mock.Mock
	dims int
}

func (m *mockClassifier) PredictProbability(x []float64) (float64, error) {
	args := m.Called(x)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockClassifier) NumFeatures() int { return m.dims }
func (m *mockClassifier) Kind() string     { return "mock" }

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) RecordScore(ctx context.Context, durationMS, probability float64, isFraud bool, generation string) {
	m.Called(probability, isFraud, generation)
}

func (m *mockRecorder) RecordScoreError(ctx context.Context, durationMS float64, code string) {
	m.Called(code)
}

type staticProvider struct {
	artifacts *model.Artifacts
}

func (p staticProvider) Snapshot() (*model.Artifacts, error) {
	if p.artifacts == nil {
		return nil, errors.ErrModelNotLoaded
	}
	return p.artifacts, nil
}

func identityScaler(n int) *ml.StandardScaler {
	s := &ml.StandardScaler{Mean: make([]float64, n), Scale: make([]float64, n)}
	for i := range s.Scale {
		s.Scale[i] = 1
	}
	return s
}

func mockArtifacts(clf ml.Classifier) *model.Artifacts {
	schema := features.DefaultSchema()
	return &model.Artifacts{
		Generation: "gen-1",
		Classifier: clf,
		Scaler:     identityScaler(schema.Len()),
		Schema:     schema,
	}
}

func testExtractor() *features.Extractor {
	return features.NewExtractor(features.StaticHistoryProvider{
		Features: features.HistoryFeatures{
			CardAgeDays:          400,
			TransactionFrequency: 3,
			AvgTransactionAmount: 40,
			DistanceFromHome:     2,
		},
	})
}

var saturdayNight = time.Date(2024, 1, 6, 23, 0, 0, 0, time.UTC)

func TestService_Score_Verdict(t *testing.T) {
	tests := []struct {
		name        string
		probability float64
		wantFraud   bool
		wantConf    float64
	}{
		{"exactly at threshold is legit", 0.5, false, 0.5},
		{"just above threshold is fraud", 0.51, true, 0.51},
		{"low probability", 0.2, false, 0.8},
		{"certain fraud", 1.0, true, 1.0},
		{"certain legit", 0.0, false, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clf := &mockClassifier{dims: 10}
			clf.On("PredictProbability", mock.AnythingOfType("[]float64")).Return(tt.probability, nil)

			svc := NewService(staticProvider{mockArtifacts(clf)}, testExtractor(), WithClock(func() time.Time { return saturdayNight }))
			res, err := svc.Score(context.Background(), transaction.Payload{Amount: 10.0})
			require.NoError(t, err)

			assert.Equal(t, tt.wantFraud, res.IsFraud)
			assert.InDelta(t, tt.probability, res.FraudProbability, 1e-12)
			assert.InDelta(t, tt.wantConf, res.Confidence, 1e-12)
			assert.GreaterOrEqual(t, res.Confidence, 0.5)
			assert.LessOrEqual(t, res.Confidence, 1.0)
			assert.Equal(t, "gen-1", res.ModelGeneration)
			clf.AssertExpectations(t)
		})
	}
}

func TestService_Score_MissingDateUsesClock(t *testing.T) {
	clf := &mockClassifier{dims: 10}
	clf.On("PredictProbability", mock.Anything).Return(0.1, nil)

	svc := NewService(staticProvider{mockArtifacts(clf)}, testExtractor(), WithClock(func() time.Time { return saturdayNight }))
	res, err := svc.Score(context.Background(), transaction.Payload{Merchant: "Store"})
	require.NoError(t, err)

	assert.Equal(t, saturdayNight, res.Timestamp)
	assert.Equal(t, 0.0, res.FeaturesUsed.Amount)
	assert.Equal(t, 23.0, res.FeaturesUsed.Hour)
	assert.Equal(t, 5.0, res.FeaturesUsed.DayOfWeek)
	assert.Equal(t, 1.0, res.FeaturesUsed.IsWeekend)
	assert.Equal(t, 1.0, res.FeaturesUsed.IsNight)
}

func TestService_Score_Errors(t *testing.T) {
	reduced := features.DefaultSchema()[:9]

	tests := []struct {
		name       string
		artifacts  func() *model.Artifacts
		payload    transaction.Payload
		wantCode   string
		wantReason string
		wantStatus int
	}{
		{
			name:       "model not loaded",
			artifacts:  func() *model.Artifacts { return nil },
			payload:    transaction.Payload{Amount: 10.0},
			wantCode:   errors.CodeModelNotLoaded,
			wantStatus: 503,
		},
		{
			name: "malformed timestamp",
			artifacts: func() *model.Artifacts {
				return mockArtifacts(&mockClassifier{dims: 10})
			},
			payload:    transaction.Payload{Amount: 10.0, TransactionDate: "not-a-date"},
			wantCode:   errors.CodeBadInput,
			wantReason: errors.CodeMalformedTimestamp,
			wantStatus: 400,
		},
		{
			name: "invalid amount",
			artifacts: func() *model.Artifacts {
				return mockArtifacts(&mockClassifier{dims: 10})
			},
			payload:    transaction.Payload{Amount: "ten dollars"},
			wantCode:   errors.CodeBadInput,
			wantReason: errors.CodeInvalidAmount,
			wantStatus: 400,
		},
		{
			name: "schema names an unknown feature",
			artifacts: func() *model.Artifacts {
				a := mockArtifacts(&mockClassifier{dims: 2})
				a.Schema = features.Schema{features.Amount, "velocity"}
				a.Scaler = identityScaler(2)
				return a
			},
			payload:    transaction.Payload{Amount: 10.0},
			wantCode:   errors.CodeModelInconsistent,
			wantReason: errors.CodeSchemaMismatch,
			wantStatus: 500,
		},
		{
			name: "scaler fit on fewer features",
			artifacts: func() *model.Artifacts {
				a := mockArtifacts(&mockClassifier{dims: 10})
				a.Scaler = identityScaler(reduced.Len())
				return a
			},
			payload:    transaction.Payload{Amount: 10.0},
			wantCode:   errors.CodeModelInconsistent,
			wantReason: errors.CodeDimensionMismatch,
			wantStatus: 500,
		},
		{
			name: "classifier fit on fewer features",
			artifacts: func() *model.Artifacts {
				clf := &mockClassifier{dims: 9}
				clf.On("PredictProbability", mock.Anything).
					Return(0.0, &ml.DimensionMismatchError{Component: "mock", Expected: 9, Got: 10})
				return mockArtifacts(clf)
			},
			payload:    transaction.Payload{Amount: 10.0},
			wantCode:   errors.CodeModelInconsistent,
			wantReason: errors.CodeDimensionMismatch,
			wantStatus: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &mockRecorder{}
			code := tt.wantCode
			if tt.wantReason != "" {
				code = tt.wantReason
			}
			rec.On("RecordScoreError", code).Return()

			svc := NewService(staticProvider{tt.artifacts()}, testExtractor(), WithMetrics(rec))
			res, err := svc.Score(context.Background(), tt.payload)
			require.Error(t, err)
			assert.Nil(t, res)

			assert.True(t, errors.IsCode(err, tt.wantCode), "got %v", err)
			assert.Equal(t, tt.wantReason, errors.Reason(err))
			assert.Equal(t, tt.wantStatus, errors.GetStatusCode(err))
			rec.AssertExpectations(t)
		})
	}
}

func TestService_Score_RecordsMetrics(t *testing.T) {
	clf := &mockClassifier{dims: 10}
	clf.On("PredictProbability", mock.Anything).Return(0.9, nil)

	rec := &mockRecorder{}
	rec.On("RecordScore", 0.9, true, "gen-1").Return().Once()

	svc := NewService(staticProvider{mockArtifacts(clf)}, testExtractor(), WithMetrics(rec))
	_, err := svc.Score(context.Background(), transaction.Payload{Amount: 10.0})
	require.NoError(t, err)
	rec.AssertExpectations(t)
}

func TestService_ModelInfo(t *testing.T) {
	svc := NewService(staticProvider{}, testExtractor())
	assert.False(t, svc.ModelInfo().ModelLoaded)

	a := mockArtifacts(&mockClassifier{dims: 10})
	a.Source = model.SourceBootstrap
	a.CreatedAt = saturdayNight
	info := NewService(staticProvider{a}, testExtractor()).ModelInfo()

	assert.True(t, info.ModelLoaded)
	assert.Equal(t, "mock", info.Kind)
	assert.Equal(t, "gen-1", info.Generation)
	assert.Equal(t, 10, info.NumFeatures)
	assert.Equal(t, features.AllFeatures(), info.Schema)
	require.NotNil(t, info.CreatedAt)
	assert.Equal(t, saturdayNight, *info.CreatedAt)
}

func TestService_Score_EndToEnd(t *testing.T) {
	cfg := model.DefaultTrainingConfig()
	cfg.Dataset.Samples = 4000
	cfg.Forest.Trees = 20
	cfg.Forest.MaxDepth = 8

	artifacts, err := model.NewTrainer(cfg).Train(context.Background())
	require.NoError(t, err)

	svc := NewService(staticProvider{artifacts}, testExtractor())
	ctx := context.Background()

	night, err := svc.Score(ctx, transaction.Payload{
		Amount:          1500.0,
		Merchant:        "Late Night Electronics",
		TransactionDate: "2024-01-06T02:00:00Z",
	})
	require.NoError(t, err)

	day, err := svc.Score(ctx, transaction.Payload{
		Amount:          25.0,
		Merchant:        "Corner Cafe",
		TransactionDate: "2024-01-03T14:00:00Z",
	})
	require.NoError(t, err)

	assert.True(t, night.IsFraud)
	assert.Greater(t, night.FraudProbability-day.FraudProbability, 0.3)

	again, err := svc.Score(ctx, transaction.Payload{
		Amount:          1500.0,
		Merchant:        "Late Night Electronics",
		TransactionDate: "2024-01-06T02:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, night.FraudProbability, again.FraudProbability)
}
