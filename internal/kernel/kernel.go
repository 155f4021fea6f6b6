// Package kernel implements kernel (Gram) matrix functions over sample rows.
package kernel

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/KyungWonPark/Nystrom/internal/calc"
)

var (
	// ErrUnknownKernel is returned by ByName for unsupported kernel names
	ErrUnknownKernel = errors.New("kernel: unknown kernel")
	// ErrBandwidth is returned for non-positive or non-finite bandwidths
	ErrBandwidth = errors.New("kernel: bandwidth must be positive")
)

// Func returns the kernel matrix K with K[i][j] = k(x_i, y_j) for the rows
// of x and y. Passing the same matrix twice yields a symmetric result.
type Func func(x, y *mat.Dense) (*mat.Dense, error)

// Names lists the kernels known to ByName
var Names = []string{"linear", "gaussian", "laplacian"}

// Linear returns the dot-product kernel
func Linear(pl *calc.PipeLine) Func {
	return func(x, y *mat.Dense) (*mat.Dense, error) {
		return pl.Gram(x, y, floats.Dot)
	}
}

// Gaussian returns exp(-||x-y||^2 / (2 bandwidth^2))
func Gaussian(pl *calc.PipeLine, bandwidth float64) (Func, error) {
	if err := checkBandwidth(bandwidth); err != nil {
		return nil, err
	}

	gamma := 1 / (2 * bandwidth * bandwidth)
	return func(x, y *mat.Dense) (*mat.Dense, error) {
		return pl.Gram(x, y, func(a, b []float64) float64 {
			return math.Exp(-gamma * sqDist(a, b))
		})
	}, nil
}

// Laplacian returns exp(-||x-y|| / bandwidth)
func Laplacian(pl *calc.PipeLine, bandwidth float64) (Func, error) {
	if err := checkBandwidth(bandwidth); err != nil {
		return nil, err
	}

	return func(x, y *mat.Dense) (*mat.Dense, error) {
		return pl.Gram(x, y, func(a, b []float64) float64 {
			return math.Exp(-math.Sqrt(sqDist(a, b)) / bandwidth)
		})
	}, nil
}

// ByName returns the named kernel. bandwidth is ignored by the linear kernel.
func ByName(name string, bandwidth float64, pl *calc.PipeLine) (Func, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "linear":
		return Linear(pl), nil
	case "gaussian", "rbf":
		return Gaussian(pl, bandwidth)
	case "laplacian":
		return Laplacian(pl, bandwidth)
	default:
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownKernel, name, strings.Join(Names, ", "))
	}
}

func checkBandwidth(bandwidth float64) error {
	if !(bandwidth > 0) || math.IsInf(bandwidth, 1) {
		return fmt.Errorf("%w: got %v", ErrBandwidth, bandwidth)
	}
	return nil
}

// sqDist computes the squared euclidean distance between a and b
func sqDist(a, b []float64) float64 {
	var acc float64
	for i, ai := range a {
		d := ai - b[i]
		acc += d * d
	}
	return acc
}
