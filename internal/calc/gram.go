package calc

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// PairFunc evaluates a pairwise measure between two rows
type PairFunc func(a, b []float64) float64

// Gram evaluates f on every pair of rows of x and y and returns the
// |x| by |y| result. When x and y are the same matrix only the upper
// triangle is evaluated and mirrored, so the result is exactly symmetric.
func (p *PipeLine) Gram(x, y *mat.Dense, f PairFunc) (*mat.Dense, error) {
	xRows, xCols := x.Dims()
	yRows, yCols := y.Dims()

	if xRows == 0 || yRows == 0 || xCols == 0 {
		return nil, fmt.Errorf("Gram: %d by %d against %d by %d: %w", xRows, xCols, yRows, yCols, ErrEmpty)
	}
	if xCols != yCols {
		return nil, fmt.Errorf("Gram: x has %d features but y has %d: %w", xCols, yCols, ErrDimMismatch)
	}

	out := mat.NewDense(xRows, yRows, nil)
	sym := x == y

	err := p.dispatch("gram", xRows, func(from int) error {
		a := x.RawRowView(from)

		start := 0
		if sym {
			start = from
		}

		for to := start; to < yRows; to++ {
			value := f(a, y.RawRowView(to))
			out.Set(from, to, value)
			if sym {
				out.Set(to, from, value)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}
