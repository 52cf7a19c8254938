package ml

import (
	"errors"
	"fmt"
)

// ErrDimensionMismatch is matched by every DimensionMismatchError
var ErrDimensionMismatch = errors.New("dimension mismatch")

// DimensionMismatchError reports a vector whose length differs from the
// dimension a component was fit with.
type DimensionMismatchError struct {
	Component string
	Expected  int
	Got       int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: %s: expected %d features, got %d", e.Component, ErrDimensionMismatch, e.Expected, e.Got)
}

// Is lets errors.Is match ErrDimensionMismatch
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

func checkDims(component string, expected int, x []float64) error {
	if len(x) != expected {
		return &DimensionMismatchError{Component: component, Expected: expected, Got: len(x)}
	}
	return nil
}

// ErrEmptyTrainingSet is returned when a fit receives no samples
var ErrEmptyTrainingSet = errors.New("empty training set")

func validateTrainingSet(X [][]float64, y []int) (int, error) {
	if len(X) == 0 {
		return 0, ErrEmptyTrainingSet
	}
	if len(X) != len(y) {
		return 0, fmt.Errorf("training set has %d rows and %d labels", len(X), len(y))
	}
	dims := len(X[0])
	if dims == 0 {
		return 0, fmt.Errorf("training rows have no features")
	}
	for i, row := range X {
		if len(row) != dims {
			return 0, &DimensionMismatchError{Component: fmt.Sprintf("training row %d", i), Expected: dims, Got: len(row)}
		}
	}
	for i, label := range y {
		if label != 0 && label != 1 {
			return 0, fmt.Errorf("label %d at row %d is not binary", label, i)
		}
	}
	return dims, nil
}
