// Package precision casts results to an explicitly chosen floating-point width.
//
// Values keep float64 storage so they can flow through gonum; only their
// representable precision changes.
package precision

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/x448/float16"
	"gonum.org/v1/gonum/mat"
)

// ErrUnknownPrecision is returned by Parse for unsupported names
var ErrUnknownPrecision = errors.New("precision: unknown precision")

// Precision is a floating-point width
type Precision int

const (
	Float64 Precision = iota
	Float32
	Float16
)

// Parse accepts "float64", "float32", "float16" and their short forms
func Parse(s string) (Precision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "float64", "f64", "double", "64":
		return Float64, nil
	case "float32", "f32", "single", "32":
		return Float32, nil
	case "float16", "f16", "half", "16":
		return Float16, nil
	}
	return Float64, fmt.Errorf("%w: %q", ErrUnknownPrecision, s)
}

func (p Precision) String() string {
	switch p {
	case Float64:
		return "float64"
	case Float32:
		return "float32"
	case Float16:
		return "float16"
	}
	return fmt.Sprintf("Precision(%d)", int(p))
}

// Cast rounds v to the nearest value representable at precision p
func (p Precision) Cast(v float64) float64 {
	switch p {
	case Float32:
		return float64(float32(v))
	case Float16:
		return float64(float16.Fromfloat32(float32(v)).Float32())
	}
	return v
}

// Format formats the cast value of v with the fewest digits that
// represent it at precision p
func (p Precision) Format(v float64) string {
	if p == Float64 {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strconv.FormatFloat(p.Cast(v), 'g', -1, 32)
}

// CastSlice returns a new slice holding the cast values of s
func (p Precision) CastSlice(s []float64) []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		out[i] = p.Cast(v)
	}
	return out
}

// CastDense returns a new matrix holding the cast values of m
func (p Precision) CastDense(m mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 {
		return p.Cast(v)
	}, m)
	return &out
}
