package converter

import (
	"errors"
	"fmt"
)

// ErrInputNotFound is returned when the input path does not exist.
var ErrInputNotFound = errors.New("file not found")

// Stage identifies the pipeline step that failed.
type Stage string

const (
	StageLoad    Stage = "load"
	StageConvert Stage = "convert"
	StageWrite   Stage = "write"
)

// Error describes a failed conversion step.
type Error struct {
	Stage Stage
	Path  string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func stageError(stage Stage, path string, err error) error {
	return &Error{Stage: stage, Path: path, Err: err}
}

// StageOf returns the failed stage of err, or "" if err is not an *Error.
func StageOf(err error) Stage {
	var e *Error
	if errors.As(err, &e) {
		return e.Stage
	}
	return ""
}
