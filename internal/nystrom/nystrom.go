// Package nystrom computes the top eigensystem of a kernel matrix over a
// sample of points with the Nyström method, as used by EigenPro-style
// preconditioners.
package nystrom

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/KyungWonPark/Nystrom/internal/calc"
	"github.com/KyungWonPark/Nystrom/internal/kernel"
	"github.com/KyungWonPark/Nystrom/internal/precision"
)

// Hoster is implemented by matrices whose storage lives outside ordinary
// process memory. Host returns a heap copy.
type Hoster interface {
	Host() (*mat.Dense, error)
}

// KernelEigensystem computes the top topQ eigenpairs of kmat/n, where
// kmat = kernelFn(samples, samples) and n is the number of samples.
//
// Eigenvalues are returned in descending order. Column i of eigvecs is the
// eigenvector of eigvals[i] divided by sqrt(n). Both are cast to prec.
// beta is the largest diagonal entry of the unscaled kmat.
//
// kernelFn must return a symmetric matrix. This is not checked: the
// eigensolver reads the upper triangle only.
func KernelEigensystem(samples mat.Matrix, kernelFn kernel.Func, topQ int, prec precision.Precision) (eigvals []float64, eigvecs *mat.Dense, beta float64, err error) {
	if samples == nil || kernelFn == nil {
		return nil, nil, 0, fmt.Errorf("%w: nil samples or kernel", ErrInvalidArgument)
	}

	var n, nFeature int
	if d, ok := samples.(*mat.Dense); !ok || d != nil {
		n, nFeature = samples.Dims()
	}
	if n == 0 || nFeature == 0 {
		return nil, nil, 0, fmt.Errorf("%w: empty sample matrix %d by %d", ErrInvalidArgument, n, nFeature)
	}
	if topQ < 1 || topQ > n {
		return nil, nil, 0, fmt.Errorf("%w: top-q %d outside [1, %d]", ErrInvalidArgument, topQ, n)
	}

	host, err := toHost(samples)
	if err != nil {
		return nil, nil, 0, err
	}

	kmat, err := kernelFn(host, host)
	if err != nil {
		return nil, nil, 0, err
	}
	if kmat == nil {
		return nil, nil, 0, fmt.Errorf("%w: kernel returned no matrix", ErrInvalidArgument)
	}
	if r, c := kmat.Dims(); r != n || c != n {
		return nil, nil, 0, fmt.Errorf("%w: kernel returned %d by %d for %d samples", ErrInvalidArgument, r, c, n)
	}
	if i, j, ok := finite(kmat); !ok {
		return nil, nil, 0, fmt.Errorf("%w: kernel matrix entry (%d, %d) is %v", ErrNumericalFailure, i, j, kmat.At(i, j))
	}

	scaledKmat, err := scale(kmat)
	if err != nil {
		return nil, nil, 0, err
	}

	var es mat.EigenSym
	if ok := es.Factorize(scaledKmat, true); !ok {
		return nil, nil, 0, fmt.Errorf("%w: symmetric eigendecomposition did not converge", ErrNumericalFailure)
	}

	vals := es.Values(nil) // ascending
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	// Keep ascending indices [n-topQ, n-1] and flip them to descending.
	eigvals = make([]float64, topQ)
	eigvecs = mat.NewDense(n, topQ, nil)
	norm := math.Sqrt(float64(n))
	for k := 0; k < topQ; k++ {
		src := n - 1 - k
		eigvals[k] = vals[src]
		for i := 0; i < n; i++ {
			eigvecs.Set(i, k, vecs.At(i, src)/norm)
		}
	}

	beta = maxDiag(kmat)

	return prec.CastSlice(eigvals), prec.CastDense(eigvecs), beta, nil
}

// Verify evaluates the kernel matrix again and checks that every returned
// pair satisfies (kmat/n) v = lambda v within tol, with v = eigvecs[:, i]*sqrt(n).
func Verify(samples mat.Matrix, kernelFn kernel.Func, eigvals []float64, eigvecs mat.Matrix, tol float64) error {
	host, err := toHost(samples)
	if err != nil {
		return err
	}

	kmat, err := kernelFn(host, host)
	if err != nil {
		return err
	}

	n, _ := kmat.Dims()
	if r, c := eigvecs.Dims(); r != n || c != len(eigvals) {
		return fmt.Errorf("%w: %d eigenvalues with %d by %d eigenvectors for %d samples",
			ErrInvalidArgument, len(eigvals), r, c, n)
	}

	var vecs mat.Dense
	vecs.Scale(math.Sqrt(float64(n)), eigvecs)

	scaledKmat, err := scale(kmat)
	if err != nil {
		return err
	}

	if !calc.CheckEigenQuality(scaledKmat, eigvals, &vecs, tol) {
		return fmt.Errorf("%w: eigenpairs do not satisfy the eigen equation within %g", ErrNumericalFailure, tol)
	}

	return nil
}

func toHost(samples mat.Matrix) (*mat.Dense, error) {
	switch m := samples.(type) {
	case Hoster:
		h, err := m.Host()
		if err != nil {
			return nil, fmt.Errorf("nystrom: failed to copy samples to host memory: %w", err)
		}
		return h, nil
	case *mat.Dense:
		return m, nil
	default:
		return mat.DenseCopyOf(samples), nil
	}
}

// scale divides kmat by its order and views the result as a symmetric
// matrix backed by the upper triangle.
func scale(kmat *mat.Dense) (*mat.SymDense, error) {
	n, _ := kmat.Dims()
	scaled := mat.NewDense(n, n, nil)
	if err := calc.Init(1, false).Avg(kmat, scaled, float64(n)); err != nil {
		return nil, err
	}
	return mat.NewSymDense(n, scaled.RawMatrix().Data), nil
}

func maxDiag(kmat *mat.Dense) float64 {
	n, _ := kmat.Dims()
	beta := kmat.At(0, 0)
	for i := 1; i < n; i++ {
		if v := kmat.At(i, i); v > beta {
			beta = v
		}
	}
	return beta
}

func finite(m mat.Matrix) (int, int, bool) {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return i, j, false
			}
		}
	}
	return 0, 0, true
}
