package calc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ZScoring standardizes every feature (column) of inputMat to zero mean
// and unit variance and writes the result to outputMat. Constant columns
// are centred only.
func (p *PipeLine) ZScoring(inputMat *mat.Dense, outputMat *mat.Dense) error {
	inputRows, inputCols := inputMat.Dims()
	outputRows, outputCols := outputMat.Dims()

	{ // Check input matrix and output matrix dimensions
		if outputRows != inputRows || outputCols != inputCols {
			return fmt.Errorf("ZScoring: input is %d by %d but output is %d by %d: %w",
				inputRows, inputCols, outputRows, outputCols, ErrDimMismatch)
		}
		if inputRows == 0 || inputCols == 0 {
			return fmt.Errorf("ZScoring: %w", ErrEmpty)
		}
	}

	stats := make([]statistic, inputCols)

	{ // Get statistics for each feature
		err := p.dispatch("zscore-stat", inputCols, func(index int) error {
			var accVal float64
			var accSqrVal float64

			for t := 0; t < inputRows; t++ {
				value := inputMat.At(t, index)
				accVal += value
				accSqrVal += value * value
			}

			avgVal := accVal / float64(inputRows)
			avgSqrVal := accSqrVal / float64(inputRows)

			stats[index].avg = avgVal
			stats[index].std = math.Sqrt(math.Max(avgSqrVal-(avgVal*avgVal), 0))
			return nil
		})
		if err != nil {
			return err
		}
	}

	// Z-Scoring
	return p.dispatch("zscore", inputRows, func(index int) error {
		for t := 0; t < inputCols; t++ {
			value := inputMat.At(index, t) - stats[t].avg
			if stats[t].std > 0 {
				value /= stats[t].std
			}
			outputMat.Set(index, t, value)
		}
		return nil
	})
}
