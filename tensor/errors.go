package tensor

import (
	"errors"
	"strconv"
	"strings"
)

// Any marks a dimension a ShapeError does not constrain.
const Any = -1

// ErrShape is wrapped by every shape contract violation.
var ErrShape = errors.New("tensor: shape mismatch")

// ShapeError reports the operation and shapes involved in a contract violation.
type ShapeError struct {
	Op       string
	Expected []int
	Actual   []int
}

func (e *ShapeError) Error() string {
	return e.Op + ": expected shape " + formatShape(e.Expected) + ", got " + formatShape(e.Actual)
}

func (e *ShapeError) Unwrap() error {
	return ErrShape
}

func formatShape(shape []int) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		if d == Any {
			parts[i] = "*"
		} else {
			parts[i] = strconv.Itoa(d)
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}
