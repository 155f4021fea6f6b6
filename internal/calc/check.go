package calc

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// SymCheck checks symmetry within precision pre
func (p *PipeLine) SymCheck(matrix mat.Matrix, pre float64) bool {
	rows, cols := matrix.Dims()
	if rows != cols {
		return false
	}
	pre = math.Abs(pre)

	isSymm := make([]bool, rows)
	_ = p.dispatch("symcheck", rows, func(index int) error {
		isSymm[index] = true
		for i := index; i < cols; i++ {
			if !(math.Abs(matrix.At(index, i)-matrix.At(i, index)) <= pre) {
				isSymm[index] = false
				break
			}
		}
		return nil
	})

	for _, ok := range isSymm {
		if !ok {
			return false
		}
	}

	return true
}

// CheckEigenQuality checks that every column of eigVec is an eigenvector of
// org with the matching entry of eigVal, i.e. org*v == lambda*v within pre.
func CheckEigenQuality(org mat.Matrix, eigVal []float64, eigVec mat.Matrix, pre float64) bool {
	rows, cols := org.Dims()
	vecRows, vecCols := eigVec.Dims()
	if rows != cols || vecRows != rows || vecCols != len(eigVal) || rows == 0 || vecCols == 0 {
		return false
	}

	// A * V
	av := mat.NewDense(rows, vecCols, nil)
	av.Mul(org, eigVec)

	// V * S
	vs := mat.NewDense(rows, vecCols, nil)
	vs.Apply(func(i, j int, v float64) float64 {
		return v * eigVal[j]
	}, eigVec)

	return mat.EqualApprox(av, vs, math.Abs(pre))
}
