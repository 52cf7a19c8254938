package features

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() Record {
	return Record{
		Amount:               10,
		Hour:                 1,
		DayOfWeek:            2,
		MerchantCategory:     3,
		CardAgeDays:          4,
		TransactionFrequency: 5,
		AvgTransactionAmount: 6,
		DistanceFromHome:     7,
		IsWeekend:            0,
		IsNight:              1,
	}
}

func TestVectorize(t *testing.T) {
	r := sampleRecord()

	t.Run("default schema", func(t *testing.T) {
		v, err := Vectorize(r, DefaultSchema())
		require.NoError(t, err)
		assert.Equal(t, []float64{10, 1, 2, 3, 4, 5, 6, 7, 0, 1}, v)
	})

	t.Run("subset follows schema order", func(t *testing.T) {
		v, err := Vectorize(r, Schema{IsNight, Amount, DistanceFromHome})
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 10, 7}, v)
	})

	t.Run("unknown feature", func(t *testing.T) {
		_, err := Vectorize(r, Schema{Amount, "velocity"})
		require.Error(t, err)
		assert.True(t, IsReason(err, ReasonSchemaMismatch))

		var extErr *ExtractionError
		require.ErrorAs(t, err, &extErr)
		assert.Equal(t, "velocity", extErr.Feature)
	})

	t.Run("empty schema", func(t *testing.T) {
		_, err := Vectorize(r, Schema{})
		assert.True(t, IsReason(err, ReasonSchemaMismatch))
	})
}

func TestSchema_Validate(t *testing.T) {
	assert.NoError(t, DefaultSchema().Validate())
	assert.NoError(t, Schema{Hour, Amount}.Validate())
	assert.Error(t, Schema{}.Validate())
	assert.Error(t, Schema{Amount, Amount}.Validate())
	assert.Error(t, Schema{"unknown"}.Validate())
}

func TestSchema_CloneIsIndependent(t *testing.T) {
	s := DefaultSchema()
	c := s.Clone()
	c[0] = "changed"
	assert.Equal(t, Amount, s[0])
	assert.False(t, s.Equal(c))
}

func TestRecord_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(sampleRecord())
	require.NoError(t, err)

	var m map[string]float64
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Len(t, m, 10)
	assert.Equal(t, 7.0, m[DistanceFromHome])
}
