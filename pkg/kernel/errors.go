package kernel

import (
	"errors"
	"fmt"
)

var (
	// ErrConstruction reports that a kernel operation could not be done.
	ErrConstruction = errors.New("construction failure")

	// ErrValidity reports that a produced solid is nil or unsound.
	ErrValidity = errors.New("validity failure")
)

// FeatureError names the model feature whose construction failed and,
// when the feature belongs to the tube grid, where it sits.
type FeatureError struct {
	Feature string
	At      fmt.Stringer // optional grid location
	Err     error
}

func (e *FeatureError) Error() string {
	if e.At != nil {
		return fmt.Sprintf("%s %s: %v", e.Feature, e.At, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Feature, e.Err)
}

func (e *FeatureError) Unwrap() error {
	return e.Err
}

// Fail wraps err as a FeatureError. A nil err returns nil.
func Fail(feature string, at fmt.Stringer, err error) error {
	if err == nil {
		return nil
	}
	return &FeatureError{Feature: feature, At: at, Err: err}
}
