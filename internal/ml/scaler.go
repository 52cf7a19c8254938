package ml

import (
	"fmt"
	"math"
)

// StandardScaler standardizes vectors with per-feature mean and scale.
// Parameters are fixed at fit time and never mutated afterwards.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// FitStandardScaler computes the mean and population standard deviation of
// every column of X. A zero-variance column gets scale 1.
func FitStandardScaler(X [][]float64) (*StandardScaler, error) {
	if len(X) == 0 {
		return nil, ErrEmptyTrainingSet
	}
	dims := len(X[0])
	mean := make([]float64, dims)
	for i, row := range X {
		if err := checkDims(fmt.Sprintf("scaler fit row %d", i), dims, row); err != nil {
			return nil, err
		}
		for j, v := range row {
			mean[j] += v
		}
	}
	n := float64(len(X))
	for j := range mean {
		mean[j] /= n
	}

	scale := make([]float64, dims)
	for _, row := range X {
		for j, v := range row {
			d := v - mean[j]
			scale[j] += d * d
		}
	}
	for j := range scale {
		scale[j] = math.Sqrt(scale[j] / n)
		if scale[j] == 0 || math.IsNaN(scale[j]) {
			scale[j] = 1
		}
	}

	return &StandardScaler{Mean: mean, Scale: scale}, nil
}

// NumFeatures returns the fitted dimension
func (s *StandardScaler) NumFeatures() int {
	return len(s.Mean)
}

// Transform returns (x - mean) / scale as a new slice
func (s *StandardScaler) Transform(x []float64) ([]float64, error) {
	if err := checkDims("scaler", len(s.Mean), x); err != nil {
		return nil, err
	}
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = (v - s.Mean[i]) / s.Scale[i]
	}
	return out, nil
}

// TransformAll applies Transform to every row
func (s *StandardScaler) TransformAll(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		t, err := s.Transform(row)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// Clone returns a copy that shares no memory with s
func (s *StandardScaler) Clone() *StandardScaler {
	return &StandardScaler{
		Mean:  append([]float64(nil), s.Mean...),
		Scale: append([]float64(nil), s.Scale...),
	}
}

// Validate checks that the parameters are usable
func (s *StandardScaler) Validate() error {
	if len(s.Mean) == 0 {
		return fmt.Errorf("scaler has no features")
	}
	if len(s.Mean) != len(s.Scale) {
		return fmt.Errorf("scaler has %d means and %d scales", len(s.Mean), len(s.Scale))
	}
	for i, sc := range s.Scale {
		if sc == 0 || math.IsNaN(sc) || math.IsInf(sc, 0) {
			return fmt.Errorf("scaler scale %d is %v", i, sc)
		}
		if math.IsNaN(s.Mean[i]) || math.IsInf(s.Mean[i], 0) {
			return fmt.Errorf("scaler mean %d is %v", i, s.Mean[i])
		}
	}
	return nil
}
