package calc

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Avg divides every element of inputMat by div and stores it in outputMat
func (p *PipeLine) Avg(inputMat *mat.Dense, outputMat *mat.Dense, div float64) error {
	inputRows, inputCols := inputMat.Dims()
	outputRows, outputCols := outputMat.Dims()

	if inputRows != outputRows || inputCols != outputCols {
		return fmt.Errorf("Avg: input dims: %d by %d when output dims: %d by %d: %w",
			inputRows, inputCols, outputRows, outputCols, ErrDimMismatch)
	}

	return p.dispatch("avg", inputRows, func(index int) error {
		for t := 0; t < inputCols; t++ {
			outputMat.Set(index, t, inputMat.At(index, t)/div)
		}
		return nil
	})
}
